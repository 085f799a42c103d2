// Package elevenlabs provides an ElevenLabs-backed synthesis provider using
// the stream-input WebSocket API.
//
// ElevenLabs delivers audio incrementally over the socket, so the provider
// implements [speech.StreamingProvider]: each base64 audio message is decoded
// and forwarded to the caller's emit callback as soon as it arrives, which
// lets the synthesis queue begin playback before the job has fully rendered.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/livedub/livedub/pkg/provider/speech"
)

const (
	wsEndpointFmt    = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s"
	voicesEndpoint   = "https://api.elevenlabs.io/v1/voices"
	defaultModel     = "eleven_flash_v2_5"
	defaultOutputFmt = "pcm_16000"
)

// Compile-time assertions.
var (
	_ speech.Provider          = (*Provider)(nil)
	_ speech.StreamingProvider = (*Provider)(nil)
	_ speech.VoiceLister       = (*Provider)(nil)
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the default ElevenLabs model ID (e.g. "eleven_flash_v2_5").
// A per-request ModelID takes precedence.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithOutputFormat sets the audio output format (e.g. "pcm_16000",
// "pcm_24000"). Only PCM formats are supported; the sample rate is parsed
// from the format name.
func WithOutputFormat(format string) Option {
	return func(p *Provider) { p.outputFormat = format }
}

// Provider implements speech.StreamingProvider backed by the ElevenLabs
// streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if _, err := sampleRateOf(p.outputFormat); err != nil {
		return nil, err
	}
	return p, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded PCM
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"` // error or info
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize implements speech.Provider by running the streaming path and
// collecting all chunks.
func (p *Provider) Synthesize(ctx context.Context, req speech.Request) (*speech.Audio, error) {
	return p.SynthesizeStream(ctx, req, nil)
}

// SynthesizeStream implements speech.StreamingProvider. It opens a WebSocket,
// sends the full request text followed by a flush, and forwards each decoded
// audio message to emit (when non-nil) while accumulating the complete result.
func (p *Provider) SynthesizeStream(ctx context.Context, req speech.Request, emit func(speech.StreamChunk)) (*speech.Audio, error) {
	if req.VoiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	rate, err := sampleRateOf(p.outputFormat)
	if err != nil {
		return nil, err
	}

	model := req.ModelID
	if model == "" {
		model = p.model
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, req.VoiceID, model)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Send the initial BOI message to authenticate and configure the stream.
	vs := &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75}
	boi := boiMessage{
		Text:          " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: vs,
		XiAPIKey:      p.apiKey,
		OutputFormat:  p.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	// Send the full text, then an empty text message to flush.
	payload, _ := json.Marshal(textMessage{Text: req.Text, VoiceSettings: vs})
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	flush, _ := json.Marshal(textMessage{Text: ""})
	if err := conn.Write(ctx, websocket.MessageText, flush); err != nil {
		return nil, fmt.Errorf("elevenlabs: send flush: %w", err)
	}

	// Read audio messages until the final marker or socket close.
	var pcm []byte
	emittedFinal := false
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			// A normal close after the flush means the stream completed
			// without an explicit isFinal marker.
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if ctx.Err() != nil {
				return nil, fmt.Errorf("elevenlabs: %w", ctx.Err())
			}
			return nil, fmt.Errorf("elevenlabs: read: %w", err)
		}

		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				continue
			}
			pcm = append(pcm, chunk...)
			if emit != nil && !resp.IsFinal {
				emit(speech.StreamChunk{PCM: chunk, SampleRate: rate})
			}
			if emit != nil && resp.IsFinal {
				emit(speech.StreamChunk{PCM: chunk, SampleRate: rate, Final: true})
				emittedFinal = true
			}
		}
		if resp.IsFinal {
			break
		}
	}

	if emit != nil && !emittedFinal {
		// Guarantee a Final chunk even when the stream ended via socket close.
		emit(speech.StreamChunk{SampleRate: rate, Final: true})
	}
	return &speech.Audio{PCM: pcm, SampleRate: rate}, nil
}

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

type elevenLabsVoice struct {
	VoiceID string `json:"voice_id"`
	Name    string `json:"name"`
	Labels  struct {
		Language string `json:"language"`
	} `json:"labels"`
}

// ListVoices implements speech.VoiceLister by querying the ElevenLabs voices
// endpoint.
func (p *Provider) ListVoices(ctx context.Context) ([]speech.Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: voices endpoint returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read voices response: %w", err)
	}
	return parseVoicesResponse(data)
}

// parseVoicesResponse converts the voices JSON into speech.Voice values.
// Split out for testability.
func parseVoicesResponse(data []byte) ([]speech.Voice, error) {
	var parsed voicesResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("elevenlabs: parse voices response: %w", err)
	}
	voices := make([]speech.Voice, 0, len(parsed.Voices))
	for _, v := range parsed.Voices {
		voices = append(voices, speech.Voice{
			ID:       v.VoiceID,
			Name:     v.Name,
			Language: v.Labels.Language,
		})
	}
	return voices, nil
}

// sampleRateOf parses the sample rate out of a "pcm_NNNNN" output format name.
func sampleRateOf(format string) (int, error) {
	rest, ok := strings.CutPrefix(format, "pcm_")
	if !ok {
		return 0, fmt.Errorf("elevenlabs: unsupported output format %q (only pcm_* formats)", format)
	}
	rate, err := strconv.Atoi(rest)
	if err != nil || rate <= 0 {
		return 0, fmt.Errorf("elevenlabs: invalid output format %q", format)
	}
	return rate, nil
}
