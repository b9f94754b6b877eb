package pest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/BelowZeroPortfolio/eco-farm-sub001/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// UnknownPest 未匹配到任何条目时的通用结果
var UnknownPest = models.PestProfile{
	Name:     "Unknown Pest",
	Severity: models.SeverityMedium,
	SuggestedActions: []string{
		"Inspect the affected area and capture a clearer image",
		"Consult an agronomist to identify the pest",
		"Isolate affected plants if damage is visible",
	},
}

type catalogFile struct {
	Pests []catalogEntry `yaml:"pests"`
}

type catalogEntry struct {
	Name     string   `yaml:"name"`
	Keys     []string `yaml:"keys"`
	Severity string   `yaml:"severity"`
	Actions  []string `yaml:"actions"`
}

// Catalog 害虫严重度查表（启动时加载一次，之后只读）
//
// 匹配是模糊的：输入名称规范化后，只要包含某条目的任一关键字即命中，
// 按文件顺序先命中者生效。这样可以容忍检测模型输出的命名差异
// （复数、下划线、前后缀），代价是存在误匹配的可能。
type Catalog struct {
	entries []compiledEntry
}

type compiledEntry struct {
	profile models.PestProfile
	keys    []string
}

// DefaultCatalog 加载内置严重度表
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalogYAML)
}

// LoadCatalog 从文件加载严重度表，path 为空时使用内置表
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pest catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog 解析 YAML 严重度表
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pest catalog: %w", err)
	}

	c := &Catalog{entries: make([]compiledEntry, 0, len(file.Pests))}
	for i, e := range file.Pests {
		if e.Name == "" {
			return nil, fmt.Errorf("pest catalog entry %d has no name", i)
		}
		severity, err := models.ParseSeverity(strings.ToLower(e.Severity))
		if err != nil {
			return nil, fmt.Errorf("pest catalog entry %q: %w", e.Name, err)
		}

		keys := make([]string, 0, len(e.Keys))
		for _, k := range e.Keys {
			if nk := Normalize(k); nk != "" {
				keys = append(keys, nk)
			}
		}
		if len(keys) == 0 {
			keys = append(keys, Normalize(e.Name))
		}

		c.entries = append(c.entries, compiledEntry{
			profile: models.PestProfile{
				Name:             e.Name,
				Severity:         severity,
				SuggestedActions: e.Actions,
			},
			keys: keys,
		})
	}

	return c, nil
}

// Lookup 根据检测类别查找严重度和建议措施（纯函数）
func (c *Catalog) Lookup(pestType string) models.PestProfile {
	name := Normalize(pestType)
	if name == "" {
		return UnknownPest
	}
	for _, e := range c.entries {
		for _, k := range e.keys {
			if strings.Contains(name, k) {
				return e.profile
			}
		}
	}
	return UnknownPest
}

// Len 条目数量
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Normalize 规范化害虫名称：小写，下划线和连字符转空格，折叠空白
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
