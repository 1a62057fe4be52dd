package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"placement-predictor/internal/common/errors"
	"placement-predictor/internal/pipeline"
	"placement-predictor/internal/prediction"
)

// predictOneRequest is the JSON body of POST /predict/one.
type predictOneRequest struct {
	Model     string                 `json:"model"`
	Threshold *float64               `json:"threshold"`
	Record    pipeline.FeatureRecord `json:"record"`
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), s.requestTimeout)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) ready(c *gin.Context) {
	models := s.svc.Models()
	if len(models) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no models loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"models": len(models),
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":   s.svc.Models(),
		"default":  s.svc.DefaultModel(),
		"features": s.svc.Features(),
	})
}

func (s *Server) runs(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(c, "list_runs", errors.NewSchemaError("limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := s.svc.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, "list_runs", errors.NewIOError("list runs", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) predictBatch(c *gin.Context) {
	if s.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.fail(c, "predict_batch", errors.NewParseError(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), nil))
			return
		}
		s.fail(c, "predict_batch", errors.NewParseError("multipart field \"file\" is required", err))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		s.fail(c, "predict_batch", errors.NewParseError(fmt.Sprintf("%q is not a .csv file", header.Filename), nil))
		return
	}

	req := prediction.Request{Model: strings.TrimSpace(c.PostForm("model"))}
	if raw := strings.TrimSpace(c.PostForm("threshold")); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(t) {
			s.fail(c, "predict_batch", errors.NewSchemaError(fmt.Sprintf("threshold %q is not a number", raw)))
			return
		}
		req.Threshold = &t
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	resp, err := s.svc.PredictUpload(ctx, file, req)
	if err != nil {
		s.fail(c, "predict_batch", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) predictOne(c *gin.Context) {
	var body predictOneRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, "predict_one", errors.NewParseError("invalid JSON body", err))
		return
	}
	if len(body.Record) == 0 {
		s.fail(c, "predict_one", errors.NewSchemaError("record is required"))
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	resp, err := s.svc.PredictRecord(ctx, body.Record, prediction.Request{Model: body.Model, Threshold: body.Threshold})
	if err != nil {
		s.fail(c, "predict_one", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

var indexPage = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>Student Placement Prediction</title></head>
<body>
<h1>Student Placement Prediction</h1>
<form action="/predict" method="post" enctype="multipart/form-data">
  <p><label>CSV file <input type="file" name="file" accept=".csv" required></label></p>
  <p><label>Model
    <select name="model">
      {{range .Models}}<option value="{{.Name}}"{{if eq .Name $.Default}} selected{{end}}>{{.Name}}</option>
      {{end}}
    </select>
  </label></p>
  <p><label>Threshold <input type="number" name="threshold" min="0" max="1" step="0.01" placeholder="0.5"></label></p>
  <p><button type="submit">Predict</button></p>
</form>
<p>Required columns: {{range $i, $f := .Features}}{{if $i}}, {{end}}{{$f.Name}}{{end}}</p>
</body>
</html>
`))

func (s *Server) index(c *gin.Context) {
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err := indexPage.Execute(c.Writer, gin.H{
		"Models":   s.svc.Models(),
		"Default":  s.svc.DefaultModel(),
		"Features": s.svc.Features(),
	})
	if err != nil {
		_ = c.Error(err)
	}
}
