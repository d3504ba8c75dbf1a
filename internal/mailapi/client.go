package mailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mailsync/backend/internal/config"
	"mailsync/backend/internal/domain"
)

// Client 定义远程邮箱 API 暴露的两个操作。
//
// 两个操作都可能因传输或凭证问题失败，本层直接向上传播，不做重试。
type Client interface {
	// List 拉取匹配查询的邮件列表，数量受 pageSize 限制
	List(ctx context.Context, conn domain.MailboxConnection, query string, pageSize int) ([]domain.RawMessage, error)
	// Send 提交一封已完成传输编码的邮件信封
	Send(ctx context.Context, conn domain.MailboxConnection, envelope domain.Envelope) (*domain.SendResult, error)
}

// HTTPClient 基于 HTTP 的远程邮箱 API 客户端实现。
//
// 出站请求经过令牌桶限速，避免触发提供方的配额限制。
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *zap.Logger
}

// NewHTTPClient 创建远程邮箱 API 客户端。
func NewHTTPClient(cfg config.ProviderConfig, log *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		log:        log,
	}
}

// listResponse 远程 API list 操作的响应体。
type listResponse struct {
	Messages []domain.RawMessage `json:"messages"`
}

// sendRequest 远程 API send 操作的请求体。
type sendRequest struct {
	Raw string `json:"raw"`
}

// List 调用远程 API 的 list 操作。
func (c *HTTPClient) List(ctx context.Context, conn domain.MailboxConnection, query string, pageSize int) ([]domain.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: "list", Err: err}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(pageSize))
	endpoint := fmt.Sprintf("%s/messages?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: "list", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+conn.CredentialRef)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "list", Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus("list", resp); err != nil {
		return nil, err
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &domain.TransportError{Op: "list", Err: fmt.Errorf("decode response: %w", err)}
	}

	c.log.Debug("listed remote messages",
		zap.String("connection_id", conn.ID),
		zap.String("query", query),
		zap.Int("count", len(decoded.Messages)),
	)
	return decoded.Messages, nil
}

// Send 调用远程 API 的 send 操作。
func (c *HTTPClient) Send(ctx context.Context, conn domain.MailboxConnection, envelope domain.Envelope) (*domain.SendResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.TransportError{Op: "send", Err: err}
	}

	body, err := json.Marshal(sendRequest{Raw: envelope.Raw})
	if err != nil {
		return nil, &domain.TransportError{Op: "send", Err: err}
	}

	endpoint := c.baseURL + "/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.TransportError{Op: "send", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+conn.CredentialRef)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()

	if err := c.checkStatus("send", resp); err != nil {
		return nil, err
	}

	var result domain.SendResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &domain.TransportError{Op: "send", Err: fmt.Errorf("decode response: %w", err)}
	}

	c.log.Info("submitted outbound message",
		zap.String("connection_id", conn.ID),
		zap.String("provider_message_id", result.ProviderMessageID),
	)
	return &result, nil
}

// checkStatus 将非 2xx 状态映射到错误分类。
func (c *HTTPClient) checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// 读取部分响应体便于排查，避免全量缓冲
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider response: %s", snippet),
		}
	default:
		return &domain.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("provider response: %s", snippet),
		}
	}
}
