// Package gateway serves the OpenAI-compatible data plane: model listing and
// chat completion proxying under /v1, authenticated by gateway access keys.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unigw/unigw/internal/feed"
	"github.com/unigw/unigw/internal/models"
	"github.com/unigw/unigw/internal/ratelimit"
	"github.com/unigw/unigw/internal/routing"
	"github.com/unigw/unigw/internal/security"
	"github.com/unigw/unigw/internal/settings"
	"github.com/unigw/unigw/internal/usage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// upstreamTimeout bounds one upstream exchange, response body included.
const upstreamTimeout = 5 * time.Minute

// accessKeyContextKey carries the authenticated key row through the request.
const accessKeyContextKey = "gateway_access_key"

var errInvalidKey = errors.New("invalid api key")

// Handler serves the data-plane endpoints.
type Handler struct {
	db        *gorm.DB
	engine    *routing.Engine
	discovery *routing.Discovery
	limiter   *ratelimit.Manager
	feed      *feed.Writer
	client    *http.Client
}

// RegisterGatewayRoutes mounts the /v1 endpoints on the router.
func RegisterGatewayRoutes(r *gin.Engine, db *gorm.DB, engine *routing.Engine, discovery *routing.Discovery, limiter *ratelimit.Manager, logWriter *feed.Writer) {
	if r == nil || db == nil {
		return
	}
	h := &Handler{
		db:        db,
		engine:    engine,
		discovery: discovery,
		limiter:   limiter,
		feed:      logWriter,
		client:    &http.Client{Timeout: upstreamTimeout},
	}

	v1 := r.Group("/v1")
	v1.Use(h.accessKeyAuth())
	v1.GET("/models", h.ListModels)
	v1.POST("/chat/completions", h.ChatCompletions)
}

// errorBody builds the error envelope carried by every data-plane failure.
func errorBody(status int, errType, message string) gin.H {
	return gin.H{"error": gin.H{
		"message": message,
		"type":    errType,
		"param":   nil,
		"code":    status,
	}}
}

// accessKeyAuth authenticates the bearer token against the access key table.
// The master key is never stored as a key value; requests carrying it are
// attributed to the hidden master row.
func (h *Handler) accessKeyAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "authentication_error", "missing authorization header"))
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == header || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "authentication_error", "invalid authorization header"))
			return
		}

		row, errLookup := h.lookupKey(c.Request.Context(), token)
		if errLookup != nil {
			if errors.Is(errLookup, errInvalidKey) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "authentication_error", "invalid api key"))
				return
			}
			log.WithError(errLookup).Error("gateway: key lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, "internal_server_error", "key lookup failed"))
			return
		}

		c.Set(accessKeyContextKey, row)
		c.Next()
	}
}

func (h *Handler) lookupKey(ctx context.Context, token string) (models.AccessKey, error) {
	var row models.AccessKey
	errFind := h.db.WithContext(ctx).Where("key = ?", token).First(&row).Error
	if errFind == nil {
		if !row.IsActive {
			return models.AccessKey{}, errInvalidKey
		}
		return row, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return models.AccessKey{}, errFind
	}

	hash := settings.StringValue(settings.MasterKeyHashKey, "")
	if hash == "" || !security.CheckMasterKey(hash, token) {
		return models.AccessKey{}, errInvalidKey
	}
	errMaster := h.db.WithContext(ctx).Where("key = ?", models.MasterTrackerKey).First(&row).Error
	if errMaster != nil {
		if errors.Is(errMaster, gorm.ErrRecordNotFound) {
			return models.AccessKey{}, errInvalidKey
		}
		return models.AccessKey{}, errMaster
	}
	if !row.IsActive {
		return models.AccessKey{}, errInvalidKey
	}
	return row, nil
}

func keyFromContext(c *gin.Context) models.AccessKey {
	value, ok := c.Get(accessKeyContextKey)
	if !ok {
		return models.AccessKey{}
	}
	row, _ := value.(models.AccessKey)
	return row
}

// ListModels handles GET /v1/models. The model list is served from the
// discovery cache and does not count against key usage or rate limits.
func (h *Handler) ListModels(c *gin.Context) {
	infos := []routing.ModelInfo{}
	if h.discovery != nil {
		if fetched := h.discovery.Models(c.Request.Context()); fetched != nil {
			infos = fetched
		}
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": infos})
}

// ChatCompletions handles POST /v1/chat/completions. The request is routed to
// the resolved provider and the upstream response is passed through verbatim,
// streamed or not.
func (h *Handler) ChatCompletions(c *gin.Context) {
	var body map[string]any
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, errorBody(http.StatusBadRequest, "invalid_request_error", "invalid json"))
		return
	}
	if body == nil {
		body = map[string]any{}
	}

	// Some agent clients carry the prompt under "input".
	if input, ok := body["input"]; ok {
		if _, exists := body["messages"]; !exists {
			body["messages"] = input
		}
		delete(body, "input")
	}

	requested, _ := body["model"].(string)
	requested = strings.TrimSpace(requested)
	if requested == "" {
		requested = routing.DefaultModel
	}

	target, errResolve := h.engine.Resolve(requested)
	if errResolve != nil {
		status, errType := resolveStatus(errResolve)
		c.JSON(status, errorBody(status, errType, errResolve.Error()))
		return
	}

	row := keyFromContext(c)
	if row.UsageLimit > 0 && row.UsageCount >= row.UsageLimit {
		c.JSON(http.StatusTooManyRequests, errorBody(http.StatusTooManyRequests, "insufficient_quota", "usage limit exceeded"))
		return
	}
	if h.limiter != nil {
		result, errAllow := h.limiter.AllowKey(c.Request.Context(), row.ID, row.RateLimit)
		if errAllow != nil {
			log.WithError(errAllow).Warn("gateway: rate limit check failed")
		} else if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(result.Reset)))
			c.JSON(http.StatusTooManyRequests, errorBody(http.StatusTooManyRequests, "rate_limit_error", "rate limit exceeded"))
			return
		}
	}

	if errCount := usage.CountRequest(c.Request.Context(), h.db, row.ID); errCount != nil {
		log.WithError(errCount).Warn("gateway: usage count failed")
	}

	requestID := uuid.NewString()
	started := time.Now()
	h.feed.Begin(c.Request.Context(), feed.Entry{
		RequestID: requestID,
		KeyID:     row.ID,
		Model:     requested,
		Provider:  target.Provider.Name,
	})

	body["model"] = target.Model
	payload, errMarshal := json.Marshal(body)
	if errMarshal != nil {
		h.complete(requestID, http.StatusInternalServerError, started)
		c.JSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, "internal_server_error", "encode upstream request: "+errMarshal.Error()))
		return
	}

	req, errBuild := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, chatEndpoint(target.Provider), bytes.NewReader(payload))
	if errBuild != nil {
		h.complete(requestID, http.StatusInternalServerError, started)
		c.JSON(http.StatusInternalServerError, errorBody(http.StatusInternalServerError, "internal_server_error", "build upstream request: "+errBuild.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+target.Provider.APIKey)
	if target.Provider.ProviderType == models.ProviderTypeOpenRouter {
		req.Header.Set("HTTP-Referer", "gw")
	}

	resp, errDo := h.client.Do(req)
	if errDo != nil {
		h.complete(requestID, http.StatusBadGateway, started)
		c.JSON(http.StatusBadGateway, errorBody(http.StatusBadGateway, "api_connection_error", "upstream request failed: "+errDo.Error()))
		return
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.WithError(errClose).Warn("gateway: close upstream body failed")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, errRead := io.ReadAll(resp.Body)
		if errRead != nil {
			log.WithError(errRead).Warn("gateway: read upstream error body failed")
		}
		h.complete(requestID, resp.StatusCode, started)
		c.Data(resp.StatusCode, upstreamContentType(resp), raw)
		return
	}

	if stream, _ := body["stream"].(bool); stream {
		h.streamResponse(c, resp)
	} else {
		h.forwardResponse(c, resp)
	}
	h.complete(requestID, resp.StatusCode, started)
}

// complete records the finished request. It must not use the request context;
// the client may already be gone.
func (h *Handler) complete(requestID string, status int, started time.Time) {
	h.feed.Complete(context.Background(), requestID, status, time.Since(started).Milliseconds())
}

// resolveStatus maps a routing failure to a response status and error type.
func resolveStatus(err error) (int, string) {
	var unknown *routing.UnknownProviderError
	switch {
	case errors.As(err, &unknown):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, routing.ErrNoProviders):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, routing.ErrGroupEmpty):
		return http.StatusServiceUnavailable, "service_unavailable_error"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// chatEndpoint returns the provider's chat completions URL. Gemini exposes an
// OpenAI-compatible surface under /openai next to its native API.
func chatEndpoint(provider models.Provider) string {
	base := routing.APIBase(provider)
	if provider.ProviderType == models.ProviderTypeGemini {
		return base + "/openai/chat/completions"
	}
	return base + "/chat/completions"
}

func upstreamContentType(resp *http.Response) string {
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		return contentType
	}
	return "application/json"
}

// forwardResponse copies a non-streaming upstream response to the client.
func (h *Handler) forwardResponse(c *gin.Context, resp *http.Response) {
	c.DataFromReader(resp.StatusCode, resp.ContentLength, upstreamContentType(resp), resp.Body, nil)
}

// streamResponse relays upstream bytes as they arrive, flushing per chunk.
// A read failure mid-stream can only travel as a data frame; the status line
// is long gone.
func (h *Handler) streamResponse(c *gin.Context, resp *http.Response) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(resp.StatusCode)

	buf := make([]byte, 32*1024)
	for {
		n, errRead := resp.Body.Read(buf)
		if n > 0 {
			if _, errWrite := c.Writer.Write(buf[:n]); errWrite != nil {
				return
			}
			c.Writer.Flush()
		}
		if errRead != nil {
			if !errors.Is(errRead, io.EOF) {
				frame, _ := json.Marshal(gin.H{"error": errRead.Error()})
				fmt.Fprintf(c.Writer, "data: %s\n\n", frame)
				c.Writer.Flush()
			}
			return
		}
	}
}

func retryAfterSeconds(reset time.Time) int {
	seconds := int(math.Ceil(time.Until(reset).Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
