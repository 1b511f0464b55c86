package predictor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"intraday/internal/models"
	"intraday/pkg/retry"
)

// client.go - синхронный TCP клиент предиктора
//
// Одно долгоживущее соединение, один запрос-ответ на бар.
// Предиктор stateful и sequential: запросы уходят строго в порядке
// прихода баров, параллельные вызовы запрещены контрактом вызывающего
// (ядро решений однопоточное).

// WarmupResponses - количество первых ответов нового дня, на которых
// предиктор прогревается. Торговые решения по ним не принимаются.
const WarmupResponses = 8

// resetSentinel отправляется предиктору при закрытии сессии,
// ответ не ожидается
const resetSentinel = "-1\n"

// ErrNotConnected соединение отсутствует и восстановить его не удалось
var ErrNotConnected = errors.New("predictor: not connected")

// Client - клиент сигнального канала.
// Не потокобезопасен: все вызовы из цикла решений.
type Client struct {
	addr    string
	timeout time.Duration
	logger  *zap.Logger

	conn   net.Conn
	reader *bufio.Reader

	// lineNo - счётчик запросов текущего торгового дня
	lineNo int
}

// NewClient создаёт клиент для адреса addr.
// timeout ограничивает и отправку и приём (рекомендация протокола: 10s).
func NewClient(addr string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		addr:    addr,
		timeout: timeout,
		logger:  logger,
	}
}

// Seq возвращает количество ответов, полученных с начала дня
func (c *Client) Seq() int {
	return c.lineNo
}

// WarmingUp возвращает true пока предиктор не получил минимум
// прогревочных запросов нового дня
func (c *Client) WarmingUp() bool {
	return c.lineNo < WarmupResponses
}

// StartDay обнуляет счётчик запросов в начале нового торгового дня
func (c *Client) StartDay() {
	c.lineNo = 0
}

// Connected сообщает есть ли живое соединение
func (c *Client) Connected() bool {
	return c.conn != nil
}

// ensureConn устанавливает соединение если его нет.
// Переподключение с backoff: предиктор может подниматься позже бота.
func (c *Client) ensureConn(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := retry.DoWithResult(ctx, func() (net.Conn, error) {
		d := net.Dialer{Timeout: c.timeout}
		return d.DialContext(ctx, "tcp", c.addr)
	}, retry.NetworkConfig())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	c.conn = conn
	c.reader = bufio.NewReader(conn)
	c.logger.Info("connected to predictor", zap.String("addr", c.addr))
	return nil
}

// drop закрывает соединение после ошибки.
// Следующий запрос переподключится заново.
func (c *Client) drop() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
}

// RequestSignal отправляет вектор признаков и ждёт классификацию.
//
// Таймаут отправки и приёма по c.timeout; таймаут эквивалентен ошибке
// сокета: соединение сбрасывается, ошибка возвращается вызывающему,
// решение текущего бара пропускается.
//
// Неизвестный символ сигнала - recoverable: логируется и возвращается
// Hold без ошибки.
//
// lineNo двигается только по полученному ответу: после транспортной
// ошибки следующий бар повторяет тот же номер по свежему соединению.
// Предиктор ключует состояние дня по номеру строки, поэтому
// неотвеченный запрос переигрывается, а не пропускается.
func (c *Client) RequestSignal(ctx context.Context, fv *models.FeatureVector) (models.SignalClass, error) {
	if err := c.ensureConn(ctx); err != nil {
		return models.SignalHold, err
	}

	payload := Encode(c.lineNo, fv)

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.drop()
		return models.SignalHold, fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		c.drop()
		return models.SignalHold, fmt.Errorf("predictor send failed: %w", err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		c.drop()
		return models.SignalHold, fmt.Errorf("failed to set read deadline: %w", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		c.drop()
		return models.SignalHold, fmt.Errorf("predictor receive failed: %w", err)
	}

	// Ответ получен, счётчик двигается даже если символ не распознан
	c.lineNo++

	sig, err := Decode(line)
	if err != nil {
		var unknown *UnknownSignalError
		if errors.As(err, &unknown) {
			c.logger.Warn("unrecognized signal character, holding",
				zap.String("char", string(unknown.Char)),
				zap.Int("line_no", c.lineNo-1))
			return models.SignalHold, nil
		}
		// Битая строка: протокол нарушен, соединение подозрительно
		c.drop()
		return models.SignalHold, err
	}

	return sig, nil
}

// Reset отправляет предиктору сигнал сброса внутреннего состояния
// последовательности. Вызывается при закрытии сессии, ответ не читается.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureConn(ctx); err != nil {
		return err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.drop()
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if _, err := c.conn.Write([]byte(resetSentinel)); err != nil {
		c.drop()
		return fmt.Errorf("predictor reset failed: %w", err)
	}

	c.logger.Info("predictor sequence reset sent", zap.String("addr", c.addr))
	return nil
}

// Close закрывает соединение
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}
