package main

import (
	"net/http"

	"cardsight/strategy"
	"cardsight/table"

	"github.com/gin-gonic/gin"
)

func (a *app) router() *gin.Engine {
	r := gin.Default()

	r.GET("/ws", func(c *gin.Context) {
		_ = a.hub.HandleRequest(c.Writer, c.Request)
	})

	r.GET("/card_count", a.handleCardCount)
	r.GET("/game_stats", a.handleGameStats)
	r.GET("/outcomes", a.handleListOutcomes)
	r.GET("/state", a.handleListState)
	r.GET("/state/:region", a.handleGetState)
	r.GET("/preview.jpg", a.handlePreview)

	r.GET("/layout", func(c *gin.Context) {
		c.JSON(http.StatusOK, a.currentLayout())
	})
	r.POST("/layout", a.handleLayout)

	r.POST("/round/new", a.handleNewRound)
	r.POST("/shoe/new", a.handleNewShoe)
	r.POST("/round/settle", a.handleSettle)

	return r
}

func (a *app) handleCardCount(c *gin.Context) {
	st := a.session.State()
	resp := gin.H{
		"count":          st.Count,
		"shoe_id":        st.ShoeID,
		"round":          st.Round,
		"optimal_action": strategy.NoAction,
	}
	rec, found, err := a.store.LoadCount(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if found && rec.ShoeID == st.ShoeID {
		resp["optimal_action"] = rec.OptimalAction
		resp["updated_at"] = rec.UpdatedAt
	}
	c.JSON(http.StatusOK, resp)
}

// handleListOutcomes 某个牌靴的逐局结果，默认当前牌靴
func (a *app) handleListOutcomes(c *gin.Context) {
	shoeID := c.Query("shoe_id")
	if shoeID == "" {
		shoeID = a.session.State().ShoeID
	}
	records, err := a.store.ListOutcomes(c.Request.Context(), shoeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (a *app) handleGameStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.session.Tally())
}

func (a *app) handleListState(c *gin.Context) {
	snaps, err := a.store.ListSnapshots(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snaps == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, snaps)
}

func (a *app) handleGetState(c *gin.Context) {
	region := c.Param("region")
	snap, found, err := a.store.GetSnapshot(c.Request.Context(), region)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "区域没有数据: " + region})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (a *app) handlePreview(c *gin.Context) {
	a.mu.RLock()
	data := a.preview
	a.mu.RUnlock()
	if len(data) == 0 {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// handleLayout 重新划分桌面区域
func (a *app) handleLayout(c *gin.Context) {
	var layout table.Layout
	if err := c.BindJSON(&layout); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := layout.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.setLayout(layout)
	a.logger.Info("桌面布局已更新", "regions", layout.Names())
	c.JSON(http.StatusOK, gin.H{"status": "calibrated"})
}

func (a *app) handleNewRound(c *gin.Context) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	st := a.session.NewRound()
	if err := a.sync.SyncReset(c.Request.Context(), "round", st.ShoeID, st.Count); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"round": st.Round})
}

func (a *app) handleNewShoe(c *gin.Context) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	st := a.session.NewShoe()
	if err := a.sync.SyncReset(c.Request.Context(), "shoe", st.ShoeID, st.Count); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"shoe_id": st.ShoeID, "round": st.Round})
}

// handleSettle 庄家亮出至少两张牌后结算本局
func (a *app) handleSettle(c *gin.Context) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	settled, ok := a.session.Settle()
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "庄家的牌少于两张，无法结算"})
		return
	}
	ctx := c.Request.Context()
	st := settled.State
	if err := a.sync.SyncSettlement(ctx, st.ShoeID, st.Count, settled.Results, settled.Tally); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := a.sync.SyncReset(ctx, "round", st.ShoeID, st.Count); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"settlements": settled.Results,
		"tally":       settled.Tally,
		"round":       st.Round,
	})
}
