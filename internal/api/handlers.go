package api

import (
	"net/http"
	"time"

	"starpets/internal/game"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleExpTable(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"levels": game.ExpTable()})
}

func (s *Server) handleFusionRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rules": game.FusionRules()})
}

func (s *Server) handleMineSpots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"spots": game.MineSpots()})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	wallet, err := s.game.Wallet(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rows, err := s.game.Transactions(r.Context(), userID, queryLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": rows})
}

func (s *Server) handleEnergyHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rows, err := s.game.EnergyHistory(r.Context(), userID, queryLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": rows})
}

func (s *Server) handleEnergyQuota(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	quota, err := s.game.EnergyPurchaseStatus(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quota)
}

func (s *Server) handleEnergyPurchase(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := s.game.PurchaseEnergy(r.Context(), game.EnergyPurchaseInput{
		UserID:         userID,
		Quantity:       in.Quantity,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreatures(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	creatures, err := s.game.ListCreatures(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"creatures": creatures})
}

func (s *Server) handleNewbieGrant(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	c, err := s.game.GrantNewbieCreature(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	view, err := s.game.StartSession(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if view.Resumed {
		status = http.StatusOK
	}
	writeJSON(w, status, view)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rewards, err := s.game.Claim(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleProductionStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	status, err := s.game.ProductionStatus(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOfflinePreview(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
		return
	}
	rewards, err := s.game.PreviewOfflineRewards(r.Context(), userID, since)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleFusion(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		MaterialIDs   []string `json:"material_ids"`
		TargetRarity  string   `json:"target_rarity"`
		UseProtection bool     `json:"use_protection"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	target, err := game.ParseRarity(in.TargetRarity)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	result, err := s.game.AttemptFusion(r.Context(), game.FusionInput{
		UserID:         userID,
		MaterialIDs:    in.MaterialIDs,
		TargetRarity:   target,
		UseProtection:  in.UseProtection,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFusionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	attempts, err := s.game.FusionHistory(r.Context(), userID, queryLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": attempts})
}

func (s *Server) handleEnterMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		SpotLevel int `json:"spot_level"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.game.EnterMine(r.Context(), userID, in.SpotLevel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleClaimMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rewards, err := s.game.ClaimMine(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (s *Server) handleMineStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	status, err := s.game.ChallengeStatus(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleMineHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	rows, err := s.game.ChallengeHistory(r.Context(), userID, queryLimit(r))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"challenges": rows})
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	views, err := s.game.Achievements(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"achievements": views})
}

func (s *Server) handleClaimAchievement(w http.ResponseWriter, r *http.Request) {
	userID, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	view, err := s.game.ClaimAchievement(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
