package api

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// MicroagentsDir 微代理文件在仓库中的约定目录
const MicroagentsDir = ".openhands/microagents"

// microagentFrontmatter 微代理文件头部的YAML front-matter
type microagentFrontmatter struct {
	Triggers []string `yaml:"triggers"`
}

// ParseMicroagentContent 解析微代理文件：剥离YAML front-matter并提取triggers。
// 无front-matter或解析失败时整个文件视为正文
func ParseMicroagentContent(raw, path string) *MicroagentContent {
	content := raw
	var triggers []string

	if strings.HasPrefix(raw, "---") {
		parts := strings.SplitN(raw, "---", 3)
		if len(parts) == 3 {
			var fm microagentFrontmatter
			if err := yaml.Unmarshal([]byte(parts[1]), &fm); err == nil {
				triggers = fm.Triggers
				content = strings.TrimLeft(parts[2], "\n")
			}
		}
	}

	return &MicroagentContent{
		Content:  content,
		Path:     path,
		Triggers: triggers,
	}
}

// IsMicroagentFile 是否为合法微代理文件名：.md后缀，
// 排除隐藏文件与README.md
func IsMicroagentFile(name string) bool {
	return strings.HasSuffix(name, ".md") &&
		!strings.HasPrefix(name, ".") &&
		name != "README.md"
}
