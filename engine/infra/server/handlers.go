package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hackrx-qa/docqa/engine/qa"
	"github.com/hackrx-qa/docqa/pkg/logger"
)

type runRequest struct {
	Documents string   `json:"documents" binding:"required,url"`
	Questions []string `json:"questions" binding:"required,min=1,dive,required"`
}

type runResponse struct {
	Answers []string `json:"answers"`
}

func handleRun(service *qa.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())
		var req runRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request: " + err.Error()})
			return
		}
		log.Info("processing questions", "count", len(req.Questions), "document", req.Documents)
		resp, err := service.Run(c.Request.Context(), qa.Request{
			DocumentURL: req.Documents,
			Questions:   req.Questions,
		})
		if err != nil {
			stage, _ := qa.FailedStage(err)
			log.Error("run failed", "stage", string(stage), "error", err)
			if qa.IsDocumentError(err) {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "Failed to process PDF document"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, runResponse{Answers: resp.Answers})
	}
}
