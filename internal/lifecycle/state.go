package lifecycle

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
)

// State is the lifecycle position of one date partition.
type State int

const (
	StateUninitialized State = iota
	StateBigramReady
	StateDictionaryReady
	StateModelTrained
	// StateModelUpdating is only held while an update run is in progress; a
	// state query never returns it.
	StateModelUpdating
	StateModelComplete
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateBigramReady:
		return "BIGRAM_READY"
	case StateDictionaryReady:
		return "DICTIONARY_READY"
	case StateModelTrained:
		return "MODEL_TRAINED"
	case StateModelUpdating:
		return "MODEL_UPDATING"
	case StateModelComplete:
		return "MODEL_COMPLETE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is what a state query found for a date.
type Status struct {
	Date       string       `json:"date"`
	State      State        `json:"state"`
	Stats      corpus.Stats `json:"stats"`
	Bigram     bool         `json:"bigram"`
	Dictionary bool         `json:"dictionary"`
	Model      bool         `json:"model"`
}

// Inspect derives the state of date from the document flag aggregates and
// the artifacts present. It fails with ErrNotFound when the date has no raw
// tweets.
func (m *Manager) Inspect(ctx context.Context, date string) (Status, error) {
	st := Status{Date: date}
	if !corpus.ValidDate(date) {
		return st, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "date %q is not YYYY-MM", date)
	}
	stats, err := m.docs.Stats(ctx, date)
	if err != nil {
		return st, err
	}
	st.Stats = stats

	for _, check := range []struct {
		key  string
		dest *bool
	}{
		{m.bigrams.Key(date), &st.Bigram},
		{m.dictionaries.Key(date), &st.Dictionary},
		{artifact.ModelKey(date), &st.Model},
	} {
		ok, err := m.artifacts.Exists(ctx, check.key)
		if err != nil {
			return st, fmt.Errorf("checking %s: %w", check.key, err)
		}
		*check.dest = ok
	}
	st.State = deriveState(st)
	return st, nil
}

// State is Inspect reduced to the lifecycle state.
func (m *Manager) State(ctx context.Context, date string) (State, error) {
	st, err := m.Inspect(ctx, date)
	if err != nil {
		return StateUninitialized, err
	}
	return st.State, nil
}

func deriveState(st Status) State {
	switch {
	case st.Model:
		if st.Stats.Pending() == 0 && st.Stats.Unnormalized() == 0 {
			return StateModelComplete
		}
		return StateModelTrained
	case st.Dictionary && st.Bigram:
		return StateDictionaryReady
	case st.Bigram:
		return StateBigramReady
	default:
		return StateUninitialized
	}
}
