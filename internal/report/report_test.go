package report

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
)

func TestEncode(t *testing.T) {
	topics := []lda.Topic{
		{Index: 1, Coherence: -0.5, Words: []lda.TopicWord{{Word: "mask", Probability: 0.25}, {Word: "wash", Probability: 0.125}}},
		{Index: 0, Coherence: -2, Words: []lda.TopicWord{{Word: "stock", Probability: 0.5}}},
	}
	data, err := Encode("2020-01", topics)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"probability": "0.25"`) {
		t.Errorf("probability not string-encoded:\n%s", data)
	}

	entries, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []Entry{
		{Date: "2020-01", TopicNum: 1, Word: "mask", Probability: "0.25"},
		{Date: "2020-01", TopicNum: 1, Word: "wash", Probability: "0.125"},
		{Date: "2020-01", TopicNum: 2, Word: "stock", Probability: "0.5"},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestDecodeRejectsBadEntries(t *testing.T) {
	tests := []string{
		`{"date": "2020-01"}`,
		`[{"date": "2020-01", "topic_num": 0, "word": "a", "probability": "0.1"}]`,
		`[{"date": "2020-01", "topic_num": 1, "word": "a", "probability": "high"}]`,
	}
	for _, in := range tests {
		if _, err := Decode([]byte(in)); err == nil {
			t.Errorf("Decode(%s) succeeded", in)
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Encode("2020-01", nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "[]" {
		t.Errorf("Encode(nil) = %s, want []", data)
	}
}
