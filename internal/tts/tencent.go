package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	ttsapi "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/book-expert/radio-tts-service/internal/core"
)

const (
	tencentEndpoint         = "tts.tencentcloudapi.com"
	tencentDefaultRegion    = "ap-guangzhou"
	tencentDefaultVoiceType = 101001
	tencentCodecMP3         = "mp3"
	tencentCodecWAV         = "wav"
)

var (
	ErrTencentCredentials = errors.New("tencent TTS requires secret id and secret key")
	ErrTencentNoAudio     = errors.New("tencent TTS returned no audio")
)

// TencentAPI is the subset of the Tencent Cloud TTS client in use.
type TencentAPI interface {
	TextToVoiceWithContext(ctx context.Context, request *ttsapi.TextToVoiceRequest) (*ttsapi.TextToVoiceResponse, error)
}

// TencentOptions configures the Tencent provider.
type TencentOptions struct {
	SecretID  string
	SecretKey string
	Region    string
	VoiceType int64
}

// TencentSynthesizer speaks through Tencent Cloud TTS, which accepts SSML
// in the text field. Items name a numeric voice type to override the
// configured one; other voice names fall back to it.
type TencentSynthesizer struct {
	api       TencentAPI
	voiceType int64
}

// NewTencentSynthesizer creates a synthesizer with a real SDK client.
func NewTencentSynthesizer(opts TencentOptions) (*TencentSynthesizer, error) {
	if opts.SecretID == "" || opts.SecretKey == "" {
		return nil, ErrTencentCredentials
	}

	if opts.Region == "" {
		opts.Region = tencentDefaultRegion
	}

	credential := common.NewCredential(opts.SecretID, opts.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = tencentEndpoint

	client, err := ttsapi.NewClient(credential, opts.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("failed to create tencent TTS client: %w", err)
	}

	return NewTencentSynthesizerWithAPI(client, opts.VoiceType), nil
}

// NewTencentSynthesizerWithAPI wraps an existing API client.
func NewTencentSynthesizerWithAPI(api TencentAPI, voiceType int64) *TencentSynthesizer {
	if voiceType == 0 {
		voiceType = tencentDefaultVoiceType
	}

	return &TencentSynthesizer{api: api, voiceType: voiceType}
}

// Synthesize returns MP3 (or WAV when requested) bytes for the markup.
func (s *TencentSynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Markup == "" {
		return nil, ErrMarkupEmpty
	}

	request := ttsapi.NewTextToVoiceRequest()
	request.Text = common.StringPtr(req.Markup)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(s.resolveVoice(req.Voice))
	request.Codec = common.StringPtr(tencentCodec(req.Encoding))

	response, err := s.api.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("tencent TTS synthesis failed: %w", err)
	}

	if response == nil || response.Response == nil || response.Response.Audio == nil {
		return nil, ErrTencentNoAudio
	}

	audioData, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to decode tencent audio: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrReceivedEmptyAudio
	}

	return audioData, nil
}

func (s *TencentSynthesizer) resolveVoice(voice string) int64 {
	voiceType, err := strconv.ParseInt(voice, 10, 64)
	if err != nil || voiceType <= 0 {
		return s.voiceType
	}

	return voiceType
}

func tencentCodec(encoding string) string {
	if strings.EqualFold(encoding, "LINEAR16") || strings.EqualFold(encoding, tencentCodecWAV) {
		return tencentCodecWAV
	}

	return tencentCodecMP3
}
