// Package report renders the ranked topics of a model as the JSON document
// stored next to it: one entry per (topic, word) with 1-based topic numbers
// and string-encoded probabilities.
package report

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
)

// Entry is one word of one ranked topic.
type Entry struct {
	Date        string `json:"date"`
	TopicNum    int    `json:"topic_num"`
	Word        string `json:"word"`
	Probability string `json:"probability"`
}

// Build flattens topics in rank order.
func Build(date string, topics []lda.Topic) []Entry {
	entries := make([]Entry, 0, len(topics)*20)
	for rank, topic := range topics {
		for _, w := range topic.Words {
			entries = append(entries, Entry{
				Date:        date,
				TopicNum:    rank + 1,
				Word:        w.Word,
				Probability: strconv.FormatFloat(w.Probability, 'f', -1, 32),
			})
		}
	}
	return entries
}

func Encode(date string, topics []lda.Topic) ([]byte, error) {
	data, err := json.MarshalIndent(Build(date, topics), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding topic report: %w", err)
	}
	return data, nil
}

func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing topic report: %w", err)
	}
	for i, e := range entries {
		if e.TopicNum < 1 {
			return nil, fmt.Errorf("entry %d has topic_num %d", i, e.TopicNum)
		}
		if _, err := strconv.ParseFloat(e.Probability, 64); err != nil {
			return nil, fmt.Errorf("entry %d has probability %q", i, e.Probability)
		}
	}
	return entries, nil
}
