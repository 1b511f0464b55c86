package broker

import "intraday/internal/models"

// broker.go - контракт адаптера брокера
//
// Подключение к реальному брокеру живёт на хост-платформе; ядро видит
// только этот интерфейс. В backtest режиме его реализует PaperBroker.

// OrderRequest - запрос на постановку ордера фиксированным лотом
type OrderRequest struct {
	Side       string  // long или short - направление позиции после входа
	Quantity   int     // фиксированный лот
	OrderType  string  // limit или market
	LimitPrice float64 // цена limit ордера (игнорируется для market)
	Exit       bool    // true для закрывающего ордера
}

// Broker - операции хост-платформы, которые вызывает ядро.
// Подтверждения приходят асинхронно через зарегистрированные callbacks,
// но в пределах однопоточного цикла решений.
type Broker interface {
	// Submit выставляет ордер и возвращает его opaque ref
	Submit(req OrderRequest) (string, error)

	// Cancel снимает работающий ордер
	Cancel(ref string) error

	// CloseStrategy - аварийная остановка: снять все ордера,
	// закрыть позицию по рынку, запретить дальнейшие решения
	CloseStrategy() error

	// NetProfit возвращает накопленный реализованный PNL
	// по данным брокера (авторитетная цифра для сверки)
	NetProfit() float64

	// OnOrderUpdate регистрирует получателя событий ордеров
	OnOrderUpdate(fn func(models.OrderUpdate))

	// OnAccountPosition регистрирует получателя авторитетных
	// обновлений позиции счёта
	OnAccountPosition(fn func(models.AccountPosition))
}
