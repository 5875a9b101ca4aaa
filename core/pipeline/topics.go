package pipeline

import (
	"sort"
	"strings"

	"github.com/siherrmann/memories/model"
)

// AggregateTopics counts the lowercased chunk topics and returns the n most common.
// Ties keep the order of first appearance.
func AggregateTopics(chunkTopics []model.ChunkTopics, n int) []model.Topic {
	counts := map[string]int{}
	var order []string
	for _, ct := range chunkTopics {
		for _, topic := range ct.Topics {
			label := strings.ToLower(strings.TrimSpace(topic))
			if label == "" {
				continue
			}
			if _, ok := counts[label]; !ok {
				order = append(order, label)
			}
			counts[label]++
		}
	}

	topics := make([]model.Topic, len(order))
	for i, label := range order {
		topics[i] = model.Topic{Label: label, Count: counts[label]}
	}
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Count > topics[j].Count })

	if n >= 0 && len(topics) > n {
		topics = topics[:n]
	}
	return topics
}
