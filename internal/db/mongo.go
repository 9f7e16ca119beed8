package db

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectMongo tries the primary URI then the local fallback. The caller
// decides what to do when both fail.
func ConnectMongo(ctx context.Context, uri, fallback string, log *zap.Logger) (*mongo.Client, error) {
	var errs []error
	for _, u := range []string{uri, fallback} {
		if u == "" {
			continue
		}
		cli, err := dialMongo(ctx, u)
		if err == nil {
			return cli, nil
		}
		log.Warn("mongodb connect failed", zap.Error(err))
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no mongodb uri configured")
	}
	return nil, errors.Join(errs...)
}

func dialMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return cli, nil
}
