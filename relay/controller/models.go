package controller

import (
	"fmt"
	"net/http"
	"sort"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/skybridge-ai/bedrock-gateway/common/helper"
	"github.com/skybridge-ai/bedrock-gateway/model"
	relaymodel "github.com/skybridge-ai/bedrock-gateway/relay/model"
	"github.com/skybridge-ai/bedrock-gateway/relay/resolver"
)

// https://platform.openai.com/docs/api-reference/models

// OpenAIModel is one /v1/models entry in the OpenAI wire shape.
type OpenAIModel struct {
	Id      string `json:"id"`
	Object  string `json:"object"` // always "model"
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
	Root    string `json:"root,omitempty"`
}

// OpenAIModelList is the /v1/models response body.
type OpenAIModelList struct {
	Object string        `json:"object"` // always "list"
	Data   []OpenAIModel `json:"data"`
}

// modelCreated is a fixed creation timestamp so clients that diff listings
// never see churn.
const modelCreated = 1626777600

// ListModels handles GET /v1/models.
func ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, OpenAIModelList{Object: "list", Data: knownModels(c)})
}

// RetrieveModel handles GET /v1/models/{model}. The not-found reply keeps the
// OpenAI envelope and code; this endpoint exists for OpenAI-dialect clients.
func RetrieveModel(c *gin.Context) {
	id := c.Param("model")
	for _, m := range knownModels(c) {
		if m.Id == id {
			c.JSON(http.StatusOK, m)
			return
		}
	}
	msg := fmt.Sprintf("The model '%s' does not exist", id)
	c.JSON(http.StatusNotFound, relaymodel.OpenAIErrorResponse{Error: relaymodel.Error{
		Message: msg,
		Type:    relaymodel.ErrTypeInvalidRequest,
		Param:   "model",
		Code:    "model_not_found",
	}})
}

// knownModels merges the baked-in resolver table with the persisted mapping
// and pricing rows. Store failures degrade the listing to what the process
// knows locally rather than failing the request.
func knownModels(c *gin.Context) []OpenAIModel {
	lg := gmw.GetLogger(c)
	ctx := gmw.Ctx(c)

	ownedBy := map[string]string{}
	for _, id := range resolver.BuiltinModels() {
		ownedBy[id] = "anthropic"
	}

	mappings, err := model.ListModelMappings(ctx)
	if err != nil {
		lg.Warn("list model mappings", zap.Error(err))
	}
	for _, m := range mappings {
		if _, ok := ownedBy[m.AnthropicModelID]; !ok {
			ownedBy[m.AnthropicModelID] = "anthropic"
		}
	}

	pricing, err := model.CacheListModelPricing(ctx)
	if err != nil {
		lg.Warn("list model pricing", zap.Error(err))
	}
	for _, p := range pricing {
		if p.Status != "" && p.Status != model.PricingStatusActive {
			continue
		}
		if _, ok := ownedBy[p.ModelID]; !ok {
			ownedBy[p.ModelID] = helper.AssignOrDefault(p.Provider, "anthropic")
		}
	}

	ids := make([]string, 0, len(ownedBy))
	for id := range ownedBy {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	models := make([]OpenAIModel, 0, len(ids))
	for _, id := range ids {
		models = append(models, OpenAIModel{
			Id:      id,
			Object:  "model",
			Created: modelCreated,
			OwnedBy: ownedBy[id],
			Root:    id,
		})
	}
	return models
}
