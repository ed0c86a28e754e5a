package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tactics-arena/arena-backend/internal/hub"
	"github.com/tactics-arena/arena-backend/internal/match"
	"github.com/tactics-arena/arena-backend/internal/types"
	"github.com/tactics-arena/arena-backend/pkg/logger"
)

// GenerateCode produces a short shareable match id.
func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateMatch(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate match id", http.StatusInternalServerError)
				return
			}
			reply := make(chan *match.Match, 1)
			h.Inbox() <- hub.GetMatch{ID: c, Reply: reply}
			if <-reply == nil {
				id = c
				break
			}
			logger.Warn("match id collision, regenerating", "id", c)
		}

		reply := make(chan *match.Match, 1)
		h.Inbox() <- hub.CreateMatch{ID: id, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create match", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			MatchID string `json:"matchId"`
		}{MatchID: id})
	}
}

func ListMatches(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []*match.Match, 1)
		h.Inbox() <- hub.ListMatches{Reply: reply}
		list := <-reply

		snaps := make([]*types.Snapshot, 0, len(list))
		for _, mt := range list {
			if snap := fetchSnapshot(mt); snap != nil {
				snaps = append(snaps, snap)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snaps)
	}
}

func GetMatch(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		reply := make(chan *match.Match, 1)
		h.Inbox() <- hub.GetMatch{ID: id, Reply: reply}
		mt := <-reply
		if mt == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		snap := fetchSnapshot(mt)
		if snap == nil {
			http.Error(w, "match not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	}
}

// fetchSnapshot asks a match actor for its state, tolerating actors
// that exit mid-request.
func fetchSnapshot(mt *match.Match) *types.Snapshot {
	reply := make(chan *types.Snapshot, 1)
	if err := mt.Send(match.GetState{Reply: reply}); err != nil {
		return nil
	}
	select {
	case snap := <-reply:
		return snap
	case <-mt.Done():
		return nil
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
