package notify

import (
	"context"
	"errors"
	"testing"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*tgbot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, p *tgbot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, p)
	return &models.Message{}, nil
}

func TestBotNotifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		externalID int64
		sendErr    error
		want       Result
		wantSent   int
	}{
		{"delivered", 42, nil, Result{Delivered: true}, 1},
		{"no chat identity", 0, nil, Result{Skipped: true}, 0},
		{"send failure is reported not raised", 42, errors.New("bot was blocked by the user"), Result{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := &fakeSender{err: tt.sendErr}
			res := NewBotNotifier(sender, nil).Notify(context.Background(), tt.externalID, "hello")

			assert.Equal(t, tt.want.Delivered, res.Delivered)
			assert.Equal(t, tt.want.Skipped, res.Skipped)
			if tt.sendErr != nil {
				assert.ErrorIs(t, res.Err, tt.sendErr)
			} else {
				assert.NoError(t, res.Err)
			}
			require.Len(t, sender.sent, tt.wantSent)
			if tt.wantSent > 0 {
				assert.Equal(t, int64(42), sender.sent[0].ChatID)
				assert.Equal(t, "hello", sender.sent[0].Text)
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()

	assert.True(t, Discard{}.Notify(context.Background(), 1, "x").Skipped)
}
