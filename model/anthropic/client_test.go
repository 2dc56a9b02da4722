package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/model"
)

type fakeMessages struct {
	resp *sdk.Message
	err  error
}

func (f *fakeMessages) New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, f.err
}

func TestNewRejectsMissingDefaults(t *testing.T) {
	_, err := New(nil, Options{DefaultModel: "claude-3"})
	assert.Error(t, err)

	_, err = New(&fakeMessages{}, Options{})
	assert.Error(t, err)
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeMessages{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello there"}},
		Usage:   sdk.Usage{InputTokens: 10, OutputTokens: 5},
	}}
	c, err := New(fake, Options{DefaultModel: "claude-3"})
	require.NoError(t, err)

	resp, err := c.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}

func TestCompleteRequiresMessages(t *testing.T) {
	c, err := New(&fakeMessages{}, Options{DefaultModel: "claude-3"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), &model.Request{})
	assert.Error(t, err)
}

func TestCompleteWrapsRateLimitErrors(t *testing.T) {
	fake := &fakeMessages{err: errors.New("429 rate limit exceeded")}
	c, err := New(fake, Options{DefaultModel: "claude-3"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	var rle *model.RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.ErrorIs(t, err, model.ErrRateLimited)
}
