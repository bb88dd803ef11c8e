package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// excelEpoch Excel序列日期的零点
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ExcelSerialDate 自1899-12-30起的天数(向下取整)
func ExcelSerialDate(date time.Time) int {
	d := time.Date(date.Year(), date.Month(), date.Day(), date.Hour(), date.Minute(), date.Second(), date.Nanosecond(), time.UTC)
	return int(math.Floor(d.Sub(excelEpoch).Hours() / 24))
}

// RenderArchiveSeed 用日期渲染归档页模板
// 占位符: {year} {month} {day} {serial}, 月和日不补零
func RenderArchiveSeed(template string, date time.Time) string {
	r := strings.NewReplacer(
		"{year}", strconv.Itoa(date.Year()),
		"{month}", strconv.Itoa(int(date.Month())),
		"{day}", strconv.Itoa(date.Day()),
		"{serial}", strconv.Itoa(ExcelSerialDate(date)),
	)
	return r.Replace(template)
}

// ArchiveSeeds 生成 [from, to] 闭区间内每天的种子URL,按日期升序
func ArchiveSeeds(template string, from, to time.Time) ([]string, error) {
	if template == "" {
		return nil, fmt.Errorf("站点配置没有归档模板")
	}
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("结束日期 %s 早于开始日期 %s", to.Format(DateLayout), from.Format(DateLayout))
	}

	seeds := make([]string, 0, int(to.Sub(from).Hours()/24)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		seeds = append(seeds, RenderArchiveSeed(template, d))
	}
	return seeds, nil
}

// DateLayout 命令行日期参数格式
const DateLayout = "2006-01-02"

// ParseDate 解析命令行日期
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式应为 %s: %w", DateLayout, err)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
