package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"referral-settlement/internal/config"
	"referral-settlement/pkg/errutil"
	"referral-settlement/services/invitecode"
	"referral-settlement/services/rebate"
	"referral-settlement/services/referral"
)

// RouterParams collects the read-only services the admin surface exposes.
// Nothing here can mutate ledger rows; settlement is invoked in-process by
// the payment collaborator, not over HTTP.
type RouterParams struct {
	fx.In

	Config    *config.Config
	Rebates   *rebate.Service
	Referrals *referral.Service
	Codes     *invitecode.Service
}

// ProvideRouter builds the gin handler for the admin reporting API.
func ProvideRouter(p RouterParams) http.Handler {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.GET("/rebates", listRebates(p.Rebates))
	api.GET("/rebates/summary", summarizeRebates(p.Rebates))
	api.GET("/referrals", listRelations(p.Referrals))
	api.GET("/referrals/:invitee_id", getRelation(p.Referrals))
	api.GET("/invite-codes/:code", findInviter(p.Codes))

	return r
}

func listRebates(svc *rebate.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		inviterID, err := strconv.ParseInt(c.Query("inviter_id"), 10, 64)
		if err != nil || inviterID <= 0 {
			abort(c, errutil.BadRequest("inviter_id is required", err))
			return
		}

		from, to, err := parseWindow(c)
		if err != nil {
			abort(c, err)
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		entries, total, err := svc.ListByInviter(c.Request.Context(), inviterID, from, to, limit, offset)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": entries, "total": total})
	}
}

func summarizeRebates(svc *rebate.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := parseWindow(c)
		if err != nil {
			abort(c, err)
			return
		}

		summary, err := svc.SummarizeBySource(c.Request.Context(), from, to)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": summary})
	}
}

func listRelations(svc *referral.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		inviterID, err := strconv.ParseInt(c.Query("inviter_id"), 10, 64)
		if err != nil || inviterID <= 0 {
			abort(c, errutil.BadRequest("inviter_id is required", err))
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

		relations, err := svc.ListByInviter(c.Request.Context(), inviterID, limit)
		if err != nil {
			abort(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": relations})
	}
}

func getRelation(svc *referral.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		inviteeID, err := strconv.ParseInt(c.Param("invitee_id"), 10, 64)
		if err != nil || inviteeID <= 0 {
			abort(c, errutil.BadRequest("invitee_id must be a positive integer", err))
			return
		}

		rel, err := svc.GetRelation(c.Request.Context(), inviteeID)
		if err != nil {
			abort(c, err)
			return
		}
		if rel == nil {
			abort(c, errutil.NotFound("relation not found", nil))
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": rel})
	}
}

func findInviter(svc *invitecode.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := svc.FindInviterByCode(c.Request.Context(), c.Param("code"))
		if err != nil {
			abort(c, err)
			return
		}
		if info == nil {
			abort(c, errutil.NotFound("invite code not found", nil))
			return
		}

		c.JSON(http.StatusOK, gin.H{"data": info})
	}
}

func parseWindow(c *gin.Context) (time.Time, time.Time, error) {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return time.Time{}, time.Time{}, errutil.BadRequest("invalid from timestamp", err)
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return time.Time{}, time.Time{}, errutil.BadRequest("invalid to timestamp", err)
	}
	return from, to, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

func abort(c *gin.Context, err error) {
	code, body := errutil.HTTPStatus(err)
	c.AbortWithStatusJSON(code, body)
}
