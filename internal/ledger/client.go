package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ledgerpay-next/internal/constants"
)

var (
	ErrConfigInvalid = errors.New("ledger config invalid")
	// ErrUnavailable 表示索引服务暂不可用（传输失败、非 2xx、响应不可解析）。
	// 调用方必须把它当作可重试的软错误，而不是"没有到账"的证据。
	ErrUnavailable = errors.New("ledger indexer unavailable")
)

const (
	authHeader       = "Authorization"
	orderByTimestamp = "timestamp"
	orderDescending  = "DESC"
)

// Config 账本索引服务配置
type Config struct {
	TestnetEndpoint string // 测试网索引服务地址
	MainnetEndpoint string // 主网索引服务地址
	APIKey          string // 鉴权 API Key
	TimeoutSeconds  int    // 单次查询超时（秒）
	PageSize        int    // 分页大小
}

// Transfer 索引服务返回的原始转账记录。
// Amount 为链上最小单位（motes）的字符串，换算由匹配层完成。
type Transfer struct {
	ID          string    // 买家附带的转账备注（关联码）
	Amount      string    // 金额（motes，字符串）
	Hash        string    // deploy 哈希
	Sender      string    // 发起方账户哈希
	BlockHeight uint64    // 区块高度
	Timestamp   time.Time // 账本时间戳
}

// Client 账本索引服务查询客户端（只读）
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient 创建查询客户端
func NewClient(cfg Config) (*Client, error) {
	cfg.normalize()
	if cfg.TestnetEndpoint == "" && cfg.MainnetEndpoint == "" {
		return nil, fmt.Errorf("%w: no indexer endpoint configured", ErrConfigInvalid)
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}, nil
}

func (c *Config) normalize() {
	c.TestnetEndpoint = strings.TrimRight(strings.TrimSpace(c.TestnetEndpoint), "/")
	c.MainnetEndpoint = strings.TrimRight(strings.TrimSpace(c.MainnetEndpoint), "/")
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = constants.DefaultLedgerTimeoutSecs
	}
	if c.PageSize <= 0 {
		c.PageSize = constants.DefaultLedgerPageSize
	}
}

// EndpointFor 返回指定网络的索引服务地址
func (c *Client) EndpointFor(network string) (string, error) {
	if c == nil {
		return "", ErrConfigInvalid
	}
	switch strings.ToLower(strings.TrimSpace(network)) {
	case constants.NetworkTestnet:
		if c.cfg.TestnetEndpoint == "" {
			return "", fmt.Errorf("%w: testnet endpoint not configured", ErrConfigInvalid)
		}
		return c.cfg.TestnetEndpoint, nil
	case constants.NetworkMainnet:
		if c.cfg.MainnetEndpoint == "" {
			return "", fmt.Errorf("%w: mainnet endpoint not configured", ErrConfigInvalid)
		}
		return c.cfg.MainnetEndpoint, nil
	default:
		return "", fmt.Errorf("%w: unknown network %q", ErrConfigInvalid, network)
	}
}

type transfersResponse struct {
	Data []struct {
		ID                   string `json:"id"`
		Amount               string `json:"amount"`
		DeployHash           string `json:"deploy_hash"`
		InitiatorAccountHash string `json:"initiator_account_hash"`
		BlockHeight          uint64 `json:"block_height"`
		Timestamp            string `json:"timestamp"`
	} `json:"data"`
}

// FindTransfersTo 查询转入指定地址、时间不早于 since 的转账，按账本时间倒序。
// 读操作，无副作用；任何失败统一折叠为 ErrUnavailable。
func (c *Client) FindTransfersTo(ctx context.Context, address, network string, since time.Time) ([]Transfer, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("%w: client not initialized", ErrConfigInvalid)
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address is empty", ErrConfigInvalid)
	}
	endpoint, err := c.EndpointFor(network)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("page_size", fmt.Sprintf("%d", c.cfg.PageSize))
	query.Set("page_number", "1")
	query.Set("order_by", orderByTimestamp)
	query.Set("order_direction", orderDescending)
	requestURL := fmt.Sprintf("%s/accounts/%s/transfers?%s", endpoint, url.PathEscape(address), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(authHeader, c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parsed transfersResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	transfers := make([]Transfer, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		ts, err := parseTimestamp(item.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ts.Before(since) {
			continue
		}
		transfers = append(transfers, Transfer{
			ID:          strings.TrimSpace(item.ID),
			Amount:      strings.TrimSpace(item.Amount),
			Hash:        strings.TrimSpace(item.DeployHash),
			Sender:      strings.TrimSpace(item.InitiatorAccountHash),
			BlockHeight: item.BlockHeight,
			Timestamp:   ts,
		})
	}
	return transfers, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02T15:04:05.000Z", raw)
}
