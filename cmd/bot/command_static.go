package main

import (
	"os"

	tele "gopkg.in/telebot.v3"
)

const (
	textStart = `Send SOL to any Telegram username, no gas required.

Deposits wait in escrow until the owner of the username claims them from the mini app.`
	textHelp = `/start - open the wallet
/help - list commands

Network fees are paid by the relay. Escrow top-ups can be bought with Telegram Stars from the mini app.`
)

func commandStart(c tele.Context) error {
	return c.Send(textStart, &tele.SendOptions{
		ReplyMarkup: &tele.ReplyMarkup{
			InlineKeyboard: [][]tele.InlineButton{
				{{Text: "Open wallet", WebApp: &tele.WebApp{URL: os.Getenv("TELEGRAM_WEB_APP_URL")}}},
			},
		},
	})
}

func commandHelp(c tele.Context) error {
	return c.Send(textHelp)
}
