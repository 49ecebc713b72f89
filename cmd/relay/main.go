package main

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"group_chat/internal/config"
	eventRepo "group_chat/internal/repository/event"
	redisSvc "group_chat/internal/service/redis"
	"group_chat/internal/service/server"
	"group_chat/internal/utils/log"
)

func main() {
	var cfg config.Relay
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal("load configuration", zap.Error(err))
	}
	log.SetLevel(cfg.LogLevel)

	mongoClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("connect to mongo", zap.Error(err))
	}
	db := mongoClient.Database(cfg.MongoDB)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: cfg.RedisAddr,
	})
	redis := redisSvc.NewRedis(rdb)

	repo := eventRepo.NewEventRepo(db)
	s := server.NewHttpServer(cfg.ListenAddr, repo, redis)
	if err := s.Run(); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
