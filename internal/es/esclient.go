package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/feedby/feedline/internal/config"
	"github.com/feedby/feedline/internal/models"
)

func NewClient(cfg *config.Config) (*elasticsearch.Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.ES_URL},
		Username:  cfg.ES_USER,
		Password:  cfg.ES_PASSWORD,
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Printf("Elasticsearch error response: %s", body)
		return nil, fmt.Errorf("elasticsearch error: %s", res.Status())
	}

	return client, nil
}

// IndexPost upserts a post document; the document id is the row id.
func IndexPost(ctx context.Context, client *elasticsearch.Client, index string, post *models.Post) error {
	doc := map[string]any{
		"id":       post.ID,
		"user_id":  post.UserID,
		"username": post.User.Username,
		"title":    post.Title,
		"content":  post.Content,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("index post: %w", err)
	}

	res, err := client.Index(
		index,
		&buf,
		client.Index.WithContext(ctx),
		client.Index.WithDocumentID(strconv.FormatUint(uint64(post.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index post: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index post: %s", res.Status())
	}
	return nil
}

func DeletePost(ctx context.Context, client *elasticsearch.Client, index string, postID uint) error {
	res, err := client.Delete(
		index,
		strconv.FormatUint(uint64(postID), 10),
		client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete post doc: %w", err)
	}
	defer res.Body.Close()

	// 404 from the index just means the post was never indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete post doc: %s", res.Status())
	}
	return nil
}
