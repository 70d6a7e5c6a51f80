package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tip-ledger/internal/dashboard"
	"tip-ledger/internal/reward"
)

const maxBodyBytes = 1 << 16

// DefaultLeaderboardLimit is used when the request gives no limit.
const DefaultLeaderboardLimit = 20

// tipBody is the POST /tip payload. AmountSOL is a pointer so a missing
// amount is told apart from zero.
type tipBody struct {
	SupporterWallet string   `json:"supporterWallet"`
	CreatorWallet   string   `json:"creatorWallet"`
	AmountSOL       *float64 `json:"amountSol"`
	TxSignature     string   `json:"txSignature"`
}

type tipResponse struct {
	Success  bool            `json:"success"`
	TipCount int64           `json:"tipCount"`
	Reward   *rewardResponse `json:"reward"`
}

type rewardResponse struct {
	SupporterReward     float64 `json:"supporterReward"`
	CreatorReward       float64 `json:"creatorReward"`
	TotalLast3          float64 `json:"totalLast3"`
	TxSignature         string  `json:"txSignature"`
	TotalCashbackEarned float64 `json:"totalCashbackEarned"`
}

type healthResponse struct {
	Status         string `json:"status"`
	PlatformWallet string `json:"platformWallet"`
}

type rankingResponse struct {
	CreatorWallet  string  `json:"creatorWallet"`
	TipCount       int64   `json:"tipCount"`
	SupporterCount int64   `json:"supporterCount"`
	TotalAmountSOL float64 `json:"totalAmountSol"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", PlatformWallet: s.platformWallet})
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	var body tipBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if body.AmountSOL == nil {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	result, err := s.tips.RecordTip(r.Context(), reward.TipRequest{
		SupporterWallet: body.SupporterWallet,
		CreatorWallet:   body.CreatorWallet,
		AmountSOL:       *body.AmountSOL,
		TxSignature:     body.TxSignature,
	})
	if err != nil {
		var ve *reward.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
			return
		}
		s.logger.Printf("record tip %s -> %s: %v", body.SupporterWallet, body.CreatorWallet, err)
		writeError(w, http.StatusInternalServerError, "failed to record tip")
		return
	}

	resp := tipResponse{Success: true, TipCount: result.TipCount}
	if result.Outcome.Kind == reward.KindRewardPaid {
		d := result.Outcome.Detail
		resp.Reward = &rewardResponse{
			SupporterReward:     d.Reward.SupporterAmountSOL,
			CreatorReward:       d.Reward.CreatorAmountSOL,
			TotalLast3:          d.Reward.TotalTipsAmountSOL,
			TxSignature:         d.Reward.TxSignature,
			TotalCashbackEarned: d.TotalCashbackEarned,
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSupporter(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")

	d, err := s.dashboard.Supporter(r.Context(), wallet)
	if err != nil {
		s.logger.Printf("dashboard for %s: %v", wallet, err)
		writeError(w, http.StatusInternalServerError, "failed to load supporter dashboard")
		return
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleCreatorSupporters(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")

	limit, ok := queryInt(w, r, "limit", dashboard.DefaultSupportersLimit)
	if !ok {
		return
	}

	list, err := s.dashboard.CreatorSupporters(r.Context(), wallet, limit)
	if err != nil {
		s.logger.Printf("supporters of %s: %v", wallet, err)
		writeError(w, http.StatusInternalServerError, "failed to load creator supporters")
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", DefaultLeaderboardLimit)
	if !ok {
		return
	}

	var since int64
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration such as 24h")
			return
		}
		since = time.Now().Add(-d).UnixMilli()
	}

	rows, err := s.leaderboard.CreatorLeaderboard(r.Context(), since, limit)
	if err != nil {
		s.logger.Printf("leaderboard: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load leaderboard")
		return
	}

	out := make([]rankingResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, rankingResponse{
			CreatorWallet:  row.CreatorWallet,
			TipCount:       row.TipCount,
			SupporterCount: row.SupporterCount,
			TotalAmountSOL: row.TotalAmountSOL,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

// queryInt reads a positive integer query parameter. It writes a 400 and
// returns false when the value is malformed.
func queryInt(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, key+" must be a positive integer")
		return 0, false
	}
	return n, true
}

// writeJSON encodes v before committing the status, so an unencodable
// value turns into a 500 rather than a truncated 200.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("encode %T: %v", v, err)
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeBody(w, status, body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(errorResponse{Error: msg})
	writeBody(w, status, body)
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
