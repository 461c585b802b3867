package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/shaiso/bqflow/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool) *Output {
	return NewOutputTo(os.Stdout, os.Stderr, jsonMode)
}

// NewOutputTo создаёт Output с заданными потоками.
func NewOutputTo(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, color.RedString("Error: ")+msg)
}

// Reports выводит отчёты задач. Статус — последняя колонка,
// чтобы цвет не ломал выравнивание tabwriter.
func (o *Output) Reports(reports []domain.TaskReport) {
	rows := make([][]string, len(reports))
	for i, r := range reports {
		rows[i] = []string{
			r.Path.String(),
			strconv.FormatFloat(r.Duration, 'f', 2, 64) + "s",
			FormatBytes(r.TotalBytesBilled),
			statusColor(string(r.Status)),
		}
	}

	o.Print([]string{"PATH", "DURATION", "BILLED", "STATUS"}, rows, reports)
}

// RunSummary выводит итог run в stderr.
func (o *Output) RunSummary(run *domain.Run, reports []domain.TaskReport) {
	var billed int64
	var failed int
	for _, r := range reports {
		billed += r.TotalBytesBilled
		if r.Status == domain.TaskStatusFailed {
			failed++
		}
	}

	fmt.Fprintf(o.errW, "Run %s %s: %d tasks, %d failed, %s billed, %s\n",
		run.ID,
		statusColor(string(run.Status)),
		len(reports),
		failed,
		FormatBytes(billed),
		run.Duration().Round(1e6),
	)
}

// statusColor подсвечивает статус: зелёный — успех, красный — ошибка,
// жёлтый — всё остальное.
func statusColor(status string) string {
	switch status {
	case string(domain.RunStatusSucceeded):
		return color.GreenString(status)
	case string(domain.RunStatusFailed):
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

// FormatBytes переводит объём в байтах в читаемый вид с основанием 1024:
// 1536 → "1.5 KB". Значение округляется до двух знаков.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0B"
	}

	i := 0
	for v := n; v >= 1024 && i < len(byteUnits)-1; v /= 1024 {
		i++
	}

	value := math.Round(float64(n)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + byteUnits[i]
}
