package echoapi

import (
	"context"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/bootstrap"
	"github.com/mistrzwujo098/quiz-sub001/services/contentgen"
)

type handlers struct {
	conf       *core.Config
	seed       SeedSource
	content    contentgen.Service
	health     Health
	validate   *validator.Validate
	translator ut.Translator
}

// defaultData serves the seed dataset with digests in place of passwords.
func (h *handlers) defaultData(ctx echo.Context) error {
	ds, err := h.seed()
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bootstrap.Envelope{
		Success: true,
		Data:    ds.Hashed(),
		Info:    map[string]interface{}{"version": h.conf.Seed.Version},
	})
}

type generateResponse struct {
	Success bool                 `json:"success"`
	Data    *contentgen.Response `json:"data"`
}

func (h *handlers) generate(ctx echo.Context) error {
	req := new(contentgen.Request)
	if err := ctx.Bind(req); err != nil {
		return err
	}
	if err := core.ValidateStruct(h.validate, h.translator, req); err != nil {
		return err
	}
	res, err := h.content.Generate(ctx.Request().Context(), *req)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, generateResponse{Success: true, Data: res})
}

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
	Remote string `json:"remote"`
	Build  string `json:"build"`
}

func (h *handlers) healthCheck(ctx echo.Context) error {
	res := healthResponse{
		Status: "ok",
		Mode:   h.health.Mode().String(),
		Remote: "unreachable",
		Build:  h.conf.Build,
	}
	pctx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ping(pctx); err == nil {
		res.Remote = "reachable"
	}
	return ctx.JSON(http.StatusOK, res)
}
