package main

import (
	"context"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"group_chat/internal/config"
	"group_chat/internal/engine/local"
	"group_chat/internal/engine/store"
	"group_chat/internal/model"
	"group_chat/internal/service/app"
	redisSvc "group_chat/internal/service/redis"
	"group_chat/internal/service/session"
	"group_chat/internal/transport"
	"group_chat/internal/utils/log"
)

func main() {
	var cfg config.Client
	if err := config.ParseEnv(&cfg); err != nil {
		log.Fatal("load configuration", zap.Error(err))
	}
	log.SetLevel(cfg.LogLevel)

	keys, err := model.ParseKeys(cfg.PrivateKey)
	if err != nil {
		log.Fatal("load keys", zap.Error(err))
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr: cfg.RedisAddr,
	})
	redis := redisSvc.NewRedis(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := local.New(ctx, keys, store.NewRedis(redis, keys.PublicKey()))
	if err != nil {
		log.Fatal("init engine", zap.Error(err))
	}

	client := transport.NewClient(keys, cfg.Relays)
	if err := client.Connect(ctx); err != nil {
		log.Fatal("connect to relays", zap.Error(err))
	}
	defer client.Close()

	sess := session.New(keys, eng, client, cfg.Relays)
	selector := session.NewSelector(eng)

	ui := app.NewApp(client, sess, selector, cfg.ClientName)
	if err := ui.Run(ctx); err != nil {
		log.Fatal("run client", zap.Error(err))
	}
}
