package configloader

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig 从 YAML 文件加载配置到 out 指向的结构体
func LoadConfig(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}
