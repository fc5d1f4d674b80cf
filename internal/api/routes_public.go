package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codebreaker-project/codebreaker/internal/db"
	"github.com/codebreaker-project/codebreaker/internal/game"
	"github.com/codebreaker-project/codebreaker/internal/util"
)

const maxHistory = 100

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "codebreaker",
		"instance_id": s.instanceID,
	})
}

func (s *Server) handleServerInfo(c *gin.Context) {
	resp := gin.H{
		"instance_id":    s.instanceID,
		"game_addr":      s.cfg.GameAddr(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"registry":       s.registry.Stats(),
		"system":         util.GetSystemInfo(),
		"archive":        s.archive != nil,
	}
	usage, err := util.GetHostUsage(".")
	if err != nil {
		s.logger.Debug().Err(err).Msg("host usage incomplete")
	}
	resp["usage"] = usage
	if s.pool != nil {
		resp["stream_workers"] = s.pool.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

type scoreboardRow struct {
	Rank            int     `json:"rank"`
	PLID            string  `json:"plid"`
	Code            string  `json:"code"`
	Trials          int     `json:"trials"`
	Mode            string  `json:"mode"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func (s *Server) handleScoreboard(c *gin.Context) {
	entries := s.registry.Scoreboard()
	rows := make([]scoreboardRow, len(entries))
	for i, e := range entries {
		rows[i] = scoreboardRow{
			Rank:            i + 1,
			PLID:            formatPLID(e.PLID),
			Code:            e.Code.Compact(),
			Trials:          e.Trials,
			Mode:            e.Mode(),
			DurationSeconds: e.Duration.Seconds(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

type attemptView struct {
	Number int    `json:"number"`
	Trial  string `json:"trial"`
	Black  int    `json:"black"`
	White  int    `json:"white"`
}

func (s *Server) handleSession(c *gin.Context) {
	plid, ok := parsePLID(c)
	if !ok {
		return
	}

	snap, found := s.registry.Session(plid)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no game for this player"})
		return
	}

	attempts := make([]attemptView, len(snap.Attempts))
	for i, a := range snap.Attempts {
		attempts[i] = attemptView{
			Number: i + 1,
			Trial:  a.Trial.Compact(),
			Black:  a.Pegs.Black,
			White:  a.Pegs.White,
		}
	}

	status := snap.Status
	if status == game.StatusPlaying && !snap.InProgress() {
		// Budget spent but not yet swept.
		status = game.StatusTimedOut
	}

	resp := gin.H{
		"plid":         formatPLID(snap.PLID),
		"status":       status.String(),
		"mode":         snap.Mode(),
		"started_at":   snap.StartedAt,
		"max_duration": int(snap.MaxDuration.Seconds()),
		"attempts":     attempts,
	}
	if snap.InProgress() {
		resp["remaining_seconds"] = int(snap.Remaining.Seconds())
	} else {
		resp["code"] = snap.Code.Compact()
		if !snap.EndedAt.IsZero() {
			resp["ended_at"] = snap.EndedAt
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}

	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistory {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
			return
		}
		limit = n
	}
	plid := 0
	if v := c.Query("plid"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || !game.ValidPLID(n) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plid"})
			return
		}
		plid = n
	}

	games, err := s.archive.RecentGames(c.Request.Context(), plid, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if games == nil {
		games = []db.GameRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (s *Server) handlePlayerStats(c *gin.Context) {
	if s.archive == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	plid, ok := parsePLID(c)
	if !ok {
		return
	}

	stats, err := s.archive.PlayerStats(c.Request.Context(), plid)
	switch {
	case errors.Is(err, db.ErrNoGames):
		c.JSON(http.StatusNotFound, gin.H{"error": "no finished games for this player"})
	case err != nil:
		s.logger.Error().Err(err).Int("plid", plid).Msg("stats query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
	default:
		c.JSON(http.StatusOK, stats)
	}
}

func parsePLID(c *gin.Context) (int, bool) {
	plid, err := strconv.Atoi(c.Param("plid"))
	if err != nil || !game.ValidPLID(plid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plid"})
		return 0, false
	}
	return plid, true
}

func formatPLID(plid int) string {
	return fmt.Sprintf("%06d", plid)
}
