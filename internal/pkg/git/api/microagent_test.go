package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMicroagentContentWithFrontmatter(t *testing.T) {
	raw := `---
triggers:
  - docker
  - container
---
# Docker 指南

使用docker时注意端口映射。
`
	content := ParseMicroagentContent(raw, ".openhands/microagents/docker.md")

	assert.Equal(t, []string{"docker", "container"}, content.Triggers)
	assert.Equal(t, ".openhands/microagents/docker.md", content.Path)
	require.NotEmpty(t, content.Content)
	assert.NotContains(t, content.Content, "triggers:")
	assert.Contains(t, content.Content, "# Docker 指南")
}

func TestParseMicroagentContentWithoutFrontmatter(t *testing.T) {
	raw := "# 普通文档\n正文内容"
	content := ParseMicroagentContent(raw, "plain.md")

	assert.Empty(t, content.Triggers)
	assert.Equal(t, raw, content.Content)
}

func TestParseMicroagentContentInvalidFrontmatter(t *testing.T) {
	// front-matter解析失败: 整个文件视为正文
	raw := "---\n\t非法yaml: [\n---\n正文"
	content := ParseMicroagentContent(raw, "bad.md")

	assert.Empty(t, content.Triggers)
	assert.Equal(t, raw, content.Content)
}

func TestIsMicroagentFile(t *testing.T) {
	assert.True(t, IsMicroagentFile("docker.md"))
	assert.True(t, IsMicroagentFile("repo.md"))
	assert.False(t, IsMicroagentFile("README.md"))
	assert.False(t, IsMicroagentFile(".hidden.md"))
	assert.False(t, IsMicroagentFile(".gitignore"))
	assert.False(t, IsMicroagentFile("script.sh"))
	assert.False(t, IsMicroagentFile("notes.txt"))
}
