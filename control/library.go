package control

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"owl/define"
	"owl/motion"
	"owl/sequence"
)

// Library 管理序列目录下的 CSV 文件
type Library struct {
	dir string
}

func NewLibrary(dir string) *Library { return &Library{dir: dir} }

func (l *Library) Dir() string { return l.dir }

// resolve 将序列名解析为目录内的路径，不允许跳出目录
func (l *Library) resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	// 兼容旧接口传入的 "instructions/xxx.csv"
	name = strings.TrimPrefix(filepath.ToSlash(name), filepath.ToSlash(l.dir)+"/")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: 无效的序列名 %q", define.ErrInvalidRequest, name)
	}
	if filepath.Ext(name) != ".csv" {
		name += ".csv"
	}
	return filepath.Join(l.dir, name), nil
}

// Load 读取并校验序列
func (l *Library) Load(name string) (motion.Sequence, error) {
	path, err := l.resolve(name)
	if err != nil {
		return motion.Sequence{}, err
	}
	steps, err := sequence.LoadFile(path)
	if err != nil {
		return motion.Sequence{}, err
	}
	return motion.NewSequence(filepath.Base(path), steps)
}

// Save 保存序列，返回文件名
func (l *Library) Save(name string, steps []motion.Step) (string, error) {
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := motion.NewSequence(name, steps); err != nil {
		return "", err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("创建序列目录失败：%w", err)
	}
	if err := sequence.SaveFile(path, steps); err != nil {
		return "", err
	}
	return filepath.Base(path), nil
}

// List 列出目录下的序列文件
func (l *Library) List() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取序列目录失败：%w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".csv" {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
