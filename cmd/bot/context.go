package main

import (
	"fmt"

	"github.com/samber/do"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"gaslessrelay/internal/services"
)

func getContextContainer(context tele.Context) (*do.Injector, error) {
	contextValue := context.Get(contextContainer)
	if contextValue == nil {
		return nil, fmt.Errorf("container not found")
	}

	result, ok := contextValue.(*do.Injector)
	if !ok {
		return nil, fmt.Errorf("container not valid")
	}

	return result, nil
}

func getContextInvoice(context tele.Context) (*services.ServiceInvoice, error) {
	injector, err := getContextContainer(context)
	if err != nil {
		return nil, err
	}
	return do.Invoke[*services.ServiceInvoice](injector)
}

func getContextLogger(context tele.Context) *zap.Logger {
	injector, err := getContextContainer(context)
	if err != nil {
		return zap.L()
	}
	logger, err := do.Invoke[*zap.Logger](injector)
	if err != nil {
		return zap.L()
	}
	return logger.Named("bot")
}
