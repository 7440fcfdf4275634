// Package docs holds the user documentation, one markdown file per topic.
package docs

import (
	"embed"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

//go:embed *.md
var docs embed.FS

// index is the topic listing all the others.
const index = "readme"

// GetTopic returns the content of a documentation topic.
func GetTopic(topic string) (string, error) {
	content, err := fs.ReadFile(docs, topic+".md")
	if err != nil {
		return "", fmt.Errorf("topic %q not found: %w", topic, err)
	}
	return string(content), nil
}

// GetTopics returns the content of the topics, one after the other. "*"
// stands for all the topics.
func GetTopics(topics ...string) (string, error) {
	var b strings.Builder
	for _, topic := range topics {
		names := []string{topic}
		if topic == "*" {
			var err error
			if names, err = GetAllTopics(); err != nil {
				return "", err
			}
		}
		for _, name := range names {
			content, err := GetTopic(name)
			if err != nil {
				return "", err
			}
			b.WriteString(content)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// GetAllTopics returns the sorted list of topics, without the index.
func GetAllTopics() ([]string, error) {
	files, err := fs.Glob(docs, "*.md")
	if err != nil {
		return nil, err
	}
	var topics []string
	for _, f := range files {
		if name := strings.TrimSuffix(f, ".md"); name != index {
			topics = append(topics, name)
		}
	}
	slices.Sort(topics)
	return topics, nil
}
