package tts_test

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	ttsapi "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/book-expert/radio-tts-service/internal/config"
	"github.com/book-expert/radio-tts-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTencent struct {
	requests []*ttsapi.TextToVoiceRequest
	audio    *string
	err      error
}

func (f *fakeTencent) TextToVoiceWithContext(
	_ context.Context,
	request *ttsapi.TextToVoiceRequest,
) (*ttsapi.TextToVoiceResponse, error) {
	f.requests = append(f.requests, request)
	if f.err != nil {
		return nil, f.err
	}

	response := ttsapi.NewTextToVoiceResponse()
	response.Response = &ttsapi.TextToVoiceResponseParams{Audio: f.audio}

	return response, nil
}

func TestEdgeSynthesizer(t *testing.T) {
	t.Parallel()

	var gotText, gotVoice string

	synth := tts.NewEdgeSynthesizerWithStream(func(_ context.Context, text, voice string) ([]byte, error) {
		gotText, gotVoice = text, voice

		return []byte(testAudioData), nil
	})

	req := standardRequest()
	req.Text = ""

	audioData, err := synth.Synthesize(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, testAudioData, string(audioData))
	assert.Equal(t, "Tonight on the air", gotText, "markup is reduced to text")
	assert.Equal(t, testVoice, gotVoice)
}

func TestEdgeSynthesizer_Errors(t *testing.T) {
	t.Parallel()

	streamErr := errors.New("websocket closed")
	failing := tts.NewEdgeSynthesizerWithStream(func(context.Context, string, string) ([]byte, error) {
		return nil, streamErr
	})

	_, err := failing.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, streamErr)

	empty := tts.NewEdgeSynthesizerWithStream(func(context.Context, string, string) ([]byte, error) {
		return nil, nil
	})

	_, err = empty.Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, tts.ErrReceivedEmptyAudio)

	silent := standardRequest()
	silent.Text = ""
	silent.Markup = "<speak></speak>"
	_, err = empty.Synthesize(context.Background(), silent)
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}

func TestTencentSynthesizer(t *testing.T) {
	t.Parallel()

	encoded := base64.StdEncoding.EncodeToString([]byte(testAudioData))
	api := &fakeTencent{audio: &encoded}
	synth := tts.NewTencentSynthesizerWithAPI(api, 0)

	audioData, err := synth.Synthesize(context.Background(), standardRequest())
	require.NoError(t, err)
	assert.Equal(t, testAudioData, string(audioData))

	req := standardRequest()
	req.Voice = "101016"
	req.Encoding = "LINEAR16"
	_, err = synth.Synthesize(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, api.requests, 2)
	assert.Equal(t, testMarkup, *api.requests[0].Text, "markup is sent as SSML")
	assert.Equal(t, int64(101001), *api.requests[0].VoiceType)
	assert.Equal(t, "mp3", *api.requests[0].Codec)
	assert.NotEmpty(t, *api.requests[0].SessionId)
	assert.Equal(t, int64(101016), *api.requests[1].VoiceType)
	assert.Equal(t, "wav", *api.requests[1].Codec)
}

func TestTencentSynthesizer_Errors(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("AuthFailure")
	_, err := tts.NewTencentSynthesizerWithAPI(&fakeTencent{err: apiErr}, 1).
		Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, apiErr)

	_, err = tts.NewTencentSynthesizerWithAPI(&fakeTencent{}, 1).
		Synthesize(context.Background(), standardRequest())
	require.ErrorIs(t, err, tts.ErrTencentNoAudio)

	_, err = tts.NewTencentSynthesizer(tts.TencentOptions{})
	require.ErrorIs(t, err, tts.ErrTencentCredentials)
}

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := config.Default().Oracle

	synth, err := tts.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &tts.HTTPClient{}, synth)

	cfg.Provider = config.PROVIDER_EDGE
	synth, err = tts.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &tts.EdgeSynthesizer{}, synth)
	require.ErrorIs(t, tts.CheckHealth(context.Background(), synth), tts.ErrHealthUnsupported)

	cfg.Provider = config.PROVIDER_TENCENT
	_, err = tts.New(cfg)
	require.ErrorIs(t, err, tts.ErrTencentCredentials)

	cfg.Provider = "festival"
	_, err = tts.New(cfg)
	require.ErrorIs(t, err, config.ErrUnknownProvider)
}
