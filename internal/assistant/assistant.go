package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"github.com/vasiliy-maslov/buyproxy/internal/config"
	"github.com/vasiliy-maslov/buyproxy/internal/metrics"
)

var ErrMissingAPIKey = errors.New("api key is required")

const systemPrompt = `당신은 글로벌 구매대행 서비스의 친절한 AI 상담원입니다.

주요 역할:
- 해외 상품 구매대행 서비스 안내
- 배송 및 수수료 관련 질문 답변
- 구매 절차 설명
- 고객 문의 응대

서비스 정보:
- 수수료: 상품가격의 10%
- 배송기간: 평균 7일 (미국/일본 3-5일, 유럽 5-7일)
- 지원국가: 미국, 일본, 중국, 유럽, 호주 등 30개국 이상
- 결제방법: 신용카드, 계좌이체, 카카오페이

항상 친절하고 전문적으로 응대하며, 한국어로 답변해주세요. 답변은 간결하게 해주세요.`

const (
	msgMissingKey = "API 키가 필요합니다. 설정 버튼을 클릭하여 Gemini API 키를 입력해주세요."
	msgInvalidKey = "API 키가 유효하지 않습니다. 올바른 Gemini API 키를 입력해주세요."
	msgQuota      = "API 사용량 한도를 초과했습니다. 잠시 후 다시 시도해주세요."
	msgGeneric    = "API 호출 중 오류가 발생했습니다."
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildPrompt flattens the conversation into a single prompt ending with an open AI turn.
func BuildPrompt(history []Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		speaker := "AI"
		if m.Role == "user" {
			speaker = "사용자"
		}
		lines = append(lines, speaker+": "+m.Content)
	}
	return systemPrompt + "\n\n대화 내역:\n" + strings.Join(lines, "\n") + "\n\nAI:"
}

// ErrorMessage turns an upstream failure into the text shown in the chat window.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingAPIKey):
		return msgMissingKey
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key"), strings.Contains(msg, "API_KEY"):
		return msgInvalidKey
	case strings.Contains(msg, "quota"):
		return msgQuota
	case msg == "":
		return msgGeneric
	}
	return msg
}

// Reply is an open completion stream. Next returns io.EOF after the last chunk.
type Reply struct {
	stream *openai.ChatCompletionStream
}

func (r *Reply) Next() (string, error) {
	for {
		resp, err := r.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (r *Reply) Close() error {
	return r.stream.Close()
}

type Service interface {
	// Open starts a completion with the caller's key. Errors returned here happen before any output.
	Open(ctx context.Context, apiKey string, history []Message) (*Reply, error)
}

type service struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewService(cfg config.AssistantConfig) Service {
	return &service{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: &http.Client{},
	}
}

func (s *service) Open(ctx context.Context, apiKey string, history []Message) (*Reply, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = s.baseURL
	clientCfg.HTTPClient = s.httpClient
	client := openai.NewClientWithConfig(clientCfg)

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(history)},
		},
		Stream: true,
	})
	if err != nil {
		metrics.ChatStreams.WithLabelValues("error").Inc()
		log.Warn().Err(err).Int("turns", len(history)).Msg("assistant: failed to open completion stream")
		return nil, fmt.Errorf("assistant: %w", err)
	}
	metrics.ChatStreams.WithLabelValues("ok").Inc()
	return &Reply{stream: stream}, nil
}

// Relay copies every chunk of r to w, calling flush after each one.
func Relay(r *Reply, w io.Writer, flush func()) error {
	for {
		chunk, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		flush()
	}
}
