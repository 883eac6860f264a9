package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/dictionary"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/normalize"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/phrases"
)

var sampleTweets = []struct {
	name string
	text string
}{
	{name: "short", text: "Stay home, stay safe! #COVID19"},
	{name: "medium", text: `Social distancing works. Hospitals in Wuhan report fewer new cases this
        week; officials urge everyone to keep washing their hands and to avoid
        crowded places until the outbreak is under control.`},
	{name: "long", text: strings.Repeat(`Researchers are racing to develop a vaccine while public health
        agencies publish daily case counts. Face masks, testing kits and ventilators
        remain in short supply across many countries. `, 20)},
}

var topics = [][]string{
	{"social", "distancing", "stay", "home", "safe", "lockdown"},
	{"vaccine", "trial", "research", "dose", "study", "virus"},
	{"stock", "market", "economy", "job", "price", "crash"},
}

func syntheticCorpus(n int) [][]string {
	docs := make([][]string, n)
	for i := range docs {
		topic := topics[i%len(topics)]
		doc := make([]string, 0, 12)
		for j := 0; j < 12; j++ {
			doc = append(doc, topic[(i+j)%len(topic)])
		}
		doc = append(doc, fmt.Sprintf("user%d", i%50))
		docs[i] = doc
	}
	return docs
}

func BenchmarkTokenize(b *testing.B) {
	for _, tc := range sampleTweets {
		b.Run(tc.name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(tc.text)))
			for i := 0; i < b.N; i++ {
				tokens := normalize.Tokenize(tc.text)
				_ = tokens
			}
		})
	}
}

func BenchmarkLemmatize(b *testing.B) {
	words := []string{"cases", "hospitals", "children", "viruses", "crises", "masks", "boxes", "countries"}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = normalize.Lemmatize(words[i%len(words)])
	}
}

func BenchmarkPhrasesLearn(b *testing.B) {
	for _, size := range []int{1000, 10000} {
		docs := syntheticCorpus(size)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				m := phrases.Learn("2020-01", docs, 5, 10)
				_ = m
			}
		})
	}
}

func BenchmarkPhrasesApply(b *testing.B) {
	docs := syntheticCorpus(5000)
	m := phrases.Learn("2020-01", docs, 5, 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Apply(docs[i%len(docs)])
	}
}

func BenchmarkDictionaryBuild(b *testing.B) {
	docs := syntheticCorpus(10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d := dictionary.Build("2020-01", docs, 5, 0.5, 100000)
		_ = d
	}
}

func encodeCorpus(docs [][]string) ([]corpus.BoW, int) {
	d := dictionary.Build("2020-01", docs, 2, 0.9, 0)
	bows := make([]corpus.BoW, len(docs))
	for i, doc := range docs {
		bows[i] = d.Doc2Bow(doc)
	}
	return bows, d.Len()
}

func benchParams() lda.Params {
	return lda.Params{
		NumTopics:      3,
		ChunkSize:      200,
		Passes:         1,
		Iterations:     50,
		Decay:          0.5,
		Offset:         1,
		GammaThreshold: 0.001,
		TopN:           10,
		Seed:           1,
	}
}

func BenchmarkLDATrain(b *testing.B) {
	bows, numTerms := encodeCorpus(syntheticCorpus(1000))
	engine := lda.NewOnlineLDA(benchParams())
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Train(ctx, bows, numTerms); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLDAUpdate(b *testing.B) {
	bows, numTerms := encodeCorpus(syntheticCorpus(1200))
	engine := lda.NewOnlineLDA(benchParams())
	ctx := context.Background()
	st, err := engine.Train(ctx, bows[:1000], numTerms)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Update(ctx, st, bows[1000:]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkTopTopics(b *testing.B) {
	bows, numTerms := encodeCorpus(syntheticCorpus(1000))
	engine := lda.NewOnlineLDA(benchParams())
	st, err := engine.Train(context.Background(), bows, numTerms)
	if err != nil {
		b.Fatal(err)
	}
	vocab := make([]string, numTerms)
	for i := range vocab {
		vocab[i] = fmt.Sprintf("term%d", i)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.TopTopics(st, bows, vocab); err != nil {
			b.Fatal(err)
		}
	}
}
