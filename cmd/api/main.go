package main

import (
	"context"
	"os/signal"
	"syscall"

	"Agora_Community/internal/config"
	"Agora_Community/internal/model"
	"Agora_Community/internal/pkg"
	"Agora_Community/internal/repository/mysql"
	"Agora_Community/internal/repository/redis"
	"Agora_Community/internal/router"
	"Agora_Community/internal/service"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := pkg.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pkg.SetSecrets(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)

	if err := mysql.InitDB(cfg.MySQLDSN); err != nil {
		log.Fatal("mysql init failed", zap.Error(err))
	}

	if err := redis.Init(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		log.Fatal("redis init failed", zap.Error(err))
	}
	defer redis.Close()

	// 自动建表（开发阶段 OK）
	if err := mysql.DB.AutoMigrate(
		&model.User{},
		&model.Community{},
		&model.Membership{},
		&model.VotingQuestion{},
		&model.Vote{},
		&model.NotificationOutbox{},
	); err != nil {
		log.Fatal("auto migrate failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 通知投递：outbox -> kafka；kafka 不可用时退回日志 sender
	sender := service.LogSender(log)
	producer, err := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
	if err != nil {
		log.Warn("kafka producer init failed, falling back to log sender", zap.Error(err))
	} else {
		defer producer.Close()
		sender = service.KafkaSender(producer)
	}
	relayer := service.NewRelayer(mysql.DB, sender, log)
	go relayer.Run(ctx)

	cache := redis.NewMembershipCacheRepository()
	notifier := service.NewOutboxNotifier(mysql.DB)

	svcs := router.Services{
		User:       service.NewUserService(mysql.DB),
		Community:  service.NewCommunityService(mysql.DB),
		Membership: service.NewMembershipService(mysql.DB, cache, notifier, log),
		Voting:     service.NewVotingService(mysql.DB),
	}

	r := router.InitRouter(svcs)
	log.Info("api listening", zap.String("addr", cfg.HTTPAddr))
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
