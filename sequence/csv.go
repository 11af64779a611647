package sequence

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"owl/define"
	"owl/motion"
)

// 序列文件的列
const (
	ColDegrees      = "Degrees"
	ColSpeed        = "Speed"
	ColAcceleration = "Acceleration"
	ColDuration     = "Duration"
	ColLabel        = "Label"
)

var header = []string{ColDegrees, ColSpeed, ColAcceleration, ColDuration, ColLabel}

// Read 解析 CSV 序列，列顺序以表头为准，Acceleration 列可省略
func Read(r io.Reader) ([]motion.Step, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	head, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, define.ErrSequenceEmpty
		}
		return nil, fmt.Errorf("读取表头失败：%w", err)
	}

	cols := make(map[string]int, len(head))
	for i, name := range head {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))] = i
	}
	for _, name := range []string{ColDegrees, ColSpeed, ColDuration, ColLabel} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: 缺少列 %s", define.ErrInvalidRequest, name)
		}
	}

	var steps []motion.Step
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 行：%v", define.ErrInvalidRequest, row, err)
		}

		step, err := parseRecord(cols, record)
		if err != nil {
			return nil, fmt.Errorf("%w: 第 %d 行：%v", define.ErrInvalidRequest, row, err)
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, define.ErrSequenceEmpty
	}
	return steps, nil
}

func parseRecord(cols map[string]int, record []string) (motion.Step, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}
	intField := func(name string) (int, error) {
		v, _ := field(name)
		// 表格工具导出的整数列可能带小数点
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s 无效：%q", name, v)
		}
		return int(math.Round(f)), nil
	}

	var step motion.Step
	var err error
	if step.TargetPosition, err = intField(ColDegrees); err != nil {
		return step, err
	}
	if step.Speed, err = intField(ColSpeed); err != nil {
		return step, err
	}
	if v, ok := field(ColAcceleration); ok && v != "" {
		if step.Acceleration, err = intField(ColAcceleration); err != nil {
			return step, err
		}
	}

	v, _ := field(ColDuration)
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return step, fmt.Errorf("%s 无效：%q", ColDuration, v)
	}
	step.Duration = time.Duration(seconds * float64(time.Second))
	step.Label, _ = field(ColLabel)

	return step, step.Validate()
}

// Write 以标准列顺序写出序列
func Write(w io.Writer, steps []motion.Step) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range steps {
		record := []string{
			strconv.Itoa(s.TargetPosition),
			strconv.Itoa(s.Speed),
			strconv.Itoa(s.Acceleration),
			strconv.FormatFloat(s.Duration.Seconds(), 'f', -1, 64),
			s.Label,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// LoadFile 读取序列文件，文件不存在时返回 define.ErrSequenceNotFound
func LoadFile(path string) ([]motion.Step, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", define.ErrSequenceNotFound, path)
		}
		return nil, fmt.Errorf("打开序列文件失败：%w", err)
	}
	defer file.Close()

	steps, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s：%w", path, err)
	}
	return steps, nil
}

// SaveFile 保存序列文件
func SaveFile(path string, steps []motion.Step) error {
	if len(steps) == 0 {
		return define.ErrSequenceEmpty
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建序列文件失败：%w", err)
	}
	if err := Write(file, steps); err != nil {
		file.Close()
		return fmt.Errorf("保存序列文件失败：%w", err)
	}
	return file.Close()
}
