package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/xtding233/bob-variates/internal/config"
	"github.com/xtding233/bob-variates/internal/ensemble"
	"github.com/xtding233/bob-variates/internal/stream"
	"github.com/xtding233/bob-variates/internal/variate"
)

var errBadRequest = errors.New("bad request")

func badRequest(err error) error { return fmt.Errorf("%w: %v", errBadRequest, err) }

type countQuery struct {
	Stream string `form:"stream"`
	N      int    `form:"n,default=1" binding:"min=0,max=100000"`
}

type armQuery struct {
	countQuery
	Preset      string   `form:"preset"`
	Kind        string   `form:"kind"`
	Mean        *float64 `form:"mean"`
	PDI         *float64 `form:"pdi"`
	MonomerMass *float64 `form:"monomer_mass"`
}

// resolve turns the query into a distribution, from a preset if named.
// Explicit parameters override the preset's.
func (s *Server) resolve(q armQuery) (variate.Kind, variate.ArmParams, error) {
	var (
		kind variate.Kind
		arm  = variate.ArmParams{PDI: 1}
	)
	switch {
	case q.Preset != "":
		p, ok := s.preset(q.Preset)
		if !ok {
			return 0, arm, badRequest(fmt.Errorf("unknown preset %q", q.Preset))
		}
		kind, arm = p.Kind, p.Arm
	case q.Kind == "":
		return 0, arm, badRequest(errors.New("missing param kind or preset"))
	}
	if q.Kind != "" {
		k, err := variate.ParseKind(q.Kind)
		if err != nil {
			return 0, arm, err
		}
		kind = k
	}
	if q.Mean != nil {
		arm.Mean = *q.Mean
	} else if q.Preset == "" {
		return 0, arm, badRequest(errors.New("missing param mean"))
	}
	if q.PDI != nil {
		arm.PDI = *q.PDI
	}
	if q.MonomerMass != nil {
		arm.MonomerMass = *q.MonomerMass
	}
	return kind, arm, nil
}

// draw fills n values from fn on the named stream and writes the response.
func (s *Server) draw(c *gin.Context, endpoint string, q countQuery, fn func(*variate.Sampler) (float64, error)) {
	values := make([]float64, q.N)
	name := stream.Name(q.Stream)
	err := s.streams.With(name, func(smp *variate.Sampler) error {
		for i := range values {
			v, err := fn(smp)
			if err != nil {
				return err
			}
			values[i] = v
		}
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.batch(endpoint, q.N)
	c.JSON(http.StatusOK, valuesResp{Stream: name, Values: values})
}

func (s *Server) handleUniform(c *gin.Context) {
	var q countQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	s.draw(c, "uniform", q, func(smp *variate.Sampler) (float64, error) {
		return smp.Uniform(), nil
	})
}

func (s *Server) handleGaussian(c *gin.Context) {
	var q countQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	s.draw(c, "gaussian", q, (*variate.Sampler).Gaussian)
}

func (s *Server) handlePoisson(c *gin.Context) {
	var q struct {
		countQuery
		Mean *float64 `form:"mean" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	mean := *q.Mean
	s.draw(c, "poisson", q.countQuery, func(smp *variate.Sampler) (float64, error) {
		return smp.Poisson(mean)
	})
}

func (s *Server) handleArm(c *gin.Context) {
	var q armQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	kind, arm, err := s.resolve(q)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.draw(c, "arm", q.countQuery, func(smp *variate.Sampler) (float64, error) {
		return smp.ArmLength(kind, arm)
	})
}

func (s *Server) handleFlory(c *gin.Context) {
	var q struct {
		countQuery
		LogProb *float64 `form:"log_prob" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	lp := *q.LogProb
	s.draw(c, "flory", q.countQuery, func(smp *variate.Sampler) (float64, error) {
		return smp.Flory(lp)
	})
}

func (s *Server) handlePoints(c *gin.Context) {
	var q struct {
		Stream string   `form:"stream"`
		N      int      `form:"n,default=1" binding:"min=0,max=10000"`
		Length *float64 `form:"length" binding:"required"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	name := stream.Name(q.Stream)
	var pts []float64
	err := s.streams.With(name, func(smp *variate.Sampler) error {
		var err error
		pts, err = smp.SortedPoints(*q.Length, q.N)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.batch("points", q.N)
	c.JSON(http.StatusOK, valuesResp{Stream: name, Values: pts})
}

func (s *Server) handleEnsemble(c *gin.Context) {
	var q struct {
		armQuery
		Trials  int    `form:"trials,default=10000" binding:"min=1,max=1000000"`
		Workers int    `form:"workers,default=1" binding:"min=1,max=64"`
		Seed    *int64 `form:"seed"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	kind, arm, err := s.resolve(q.armQuery)
	if err != nil {
		s.fail(c, err)
		return
	}
	cfg := s.streams.Config()
	seed := cfg.Seed
	if q.Seed != nil {
		seed = *q.Seed
	}
	st, err := s.runner.Run(c.Request.Context(), ensemble.Params{
		Kind:       kind,
		Arm:        arm,
		Source:     cfg.Source,
		Seed:       seed,
		Trials:     q.Trials,
		Workers:    q.Workers,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.batch("ensemble", q.Trials)
	c.JSON(http.StatusOK, st)
}

type presetResp struct {
	Name string `json:"name"`
	config.Preset
}

func (s *Server) handlePresets(c *gin.Context) {
	s.mu.RLock()
	out := make([]presetResp, 0, len(s.presets))
	for name, p := range s.presets {
		out = append(out, presetResp{Name: name, Preset: p})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	c.JSON(http.StatusOK, out)
}

type reseedReq struct {
	Seed *int64 `json:"seed" binding:"required"`
}

type reseedResp struct {
	Stream string `json:"stream"`
	Seed   int64  `json:"seed"`
}

func (s *Server) handleReseed(c *gin.Context) {
	var req reseedReq
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	name := c.Param("name")
	if err := s.streams.Reseed(name, *req.Seed); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reseedResp{Stream: name, Seed: *req.Seed})
}
