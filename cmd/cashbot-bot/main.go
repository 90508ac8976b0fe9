package main

import (
	"context"
	"errors"

	"cashbot/internal/amqp"
	"cashbot/internal/bot"
	"cashbot/internal/cli"
	"cashbot/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentBot)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var llm bot.TextParser
	if cfg.OpenAIAPIKey != "" {
		llm = bot.NewLLMParser(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		logger.Info("LLM fallback parser enabled", "model", cfg.OpenAIModel)
	} else {
		logger.Info("LLM fallback parser disabled - no API key provided")
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	connect := func() (*amqp.Client, error) {
		return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPChatQueue, cfg.AMQPReplyQueue)
	}
	consume := func(ctx context.Context, client *amqp.Client) error {
		handler := bot.NewHandler(repo, client, llm, logger)
		return client.ConsumeChatMessages(ctx, func(msg *amqp.ChatMessage) error {
			return handler.Handle(ctx, msg)
		})
	}

	logger.Info("Starting cashbot chat consumer", "queue", cfg.AMQPChatQueue)
	if err := amqp.ConsumeWithReconnect(ctx, connect, consume); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Chat consumption failed", "error", err)
	}
	logger.Info("Chat consumer stopped")
}
