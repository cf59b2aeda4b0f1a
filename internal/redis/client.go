package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// ChannelTopic is the pub/sub topic carrying new messages for one whisper channel.
func ChannelTopic(channelID string) string {
	return fmt.Sprintf("channel:%s:messages", channelID)
}

// ListCacheKey holds a user's cached invitation list views.
func ListCacheKey(userID string) string {
	return fmt.Sprintf("invlists:%s", userID)
}
