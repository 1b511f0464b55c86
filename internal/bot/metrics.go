package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о halt и ошибках канала
// - Анализ латентности предиктора в production

// ============ Метрики сигнального канала ============

// SignalRoundTrip - время полного цикла запрос-ответ предиктора
// Buckets подобраны под TCP канал с deadline 10s
var SignalRoundTrip = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "intraday",
		Subsystem: "predictor",
		Name:      "signal_round_trip_ms",
		Help:      "Predictor request/response round trip in milliseconds",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
	},
	[]string{"symbol"},
)

// SignalErrors - ошибки канала предиктора (таймаут, сокет, протокол)
var SignalErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "predictor",
		Name:      "signal_errors_total",
		Help:      "Total predictor channel failures",
	},
	[]string{"symbol"},
)

// WarmupDiscards - сигналы, отброшенные в фазе прогрева
var WarmupDiscards = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "predictor",
		Name:      "warmup_discards_total",
		Help:      "Signals discarded during predictor warm-up",
	},
	[]string{"symbol"},
)

// PredictorConnected - статус соединения с предиктором
var PredictorConnected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "intraday",
		Subsystem: "predictor",
		Name:      "connected",
		Help:      "Predictor connection status (1=connected, 0=disconnected)",
	},
	[]string{"symbol"},
)

// ============ Счётчики торговых событий ============

// BarsProcessed - обработанные бары по сериям
var BarsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "trading",
		Name:      "bars_processed_total",
		Help:      "Total bars processed by series",
	},
	[]string{"symbol", "series"}, // series: primary, secondary
)

// EntriesTotal - входы по направлениям
var EntriesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "trading",
		Name:      "entries_total",
		Help:      "Total entry orders submitted",
	},
	[]string{"symbol", "side"},
)

// ExitsTotal - выходы по причинам
var ExitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "trading",
		Name:      "exits_total",
		Help:      "Total exits by reason",
	},
	[]string{"symbol", "reason"}, // market_shift, soft_deck, profit_chase, hard_deck, session_end, manual
)

// TradeOutcomes - исходы сделок
var TradeOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "trading",
		Name:      "trade_outcomes_total",
		Help:      "Realized trade outcomes",
	},
	[]string{"symbol", "outcome"}, // win, loss
)

// ============ Метрики риск-контуров ============

// HaltsTriggered - срабатывания halt по контурам
var HaltsTriggered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "risk",
		Name:      "halts_triggered_total",
		Help:      "Trading halts by governor",
	},
	[]string{"symbol", "kind"}, // daily, monthly, hard_deck, stuck_exit
)

// DeckTriggers - срабатывания стоп-уровней
var DeckTriggers = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "intraday",
		Subsystem: "risk",
		Name:      "deck_triggers_total",
		Help:      "Soft and hard deck triggers",
	},
	[]string{"symbol", "deck"}, // soft, hard
)

// VirtualCapital - текущий виртуальный капитал
var VirtualCapital = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "intraday",
		Subsystem: "risk",
		Name:      "virtual_capital",
		Help:      "Current virtual capital estimate",
	},
	[]string{"symbol"},
)

// ConsecutiveLosses - текущая серия убытков
var ConsecutiveLosses = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "intraday",
		Subsystem: "risk",
		Name:      "consecutive_losses",
		Help:      "Current consecutive loss streak",
	},
	[]string{"symbol"},
)

// ============ Вспомогательные функции ============

// RecordSignalRoundTrip записывает латентность цикла предиктора
func RecordSignalRoundTrip(symbol string, latencyMs float64) {
	SignalRoundTrip.WithLabelValues(symbol).Observe(latencyMs)
}

// RecordExit записывает выход и его исход
func RecordExit(symbol, reason string, win bool) {
	ExitsTotal.WithLabelValues(symbol, reason).Inc()
	outcome := "loss"
	if win {
		outcome = "win"
	}
	TradeOutcomes.WithLabelValues(symbol, outcome).Inc()
}

// RecordHalt записывает срабатывание halt
func RecordHalt(symbol, kind string) {
	HaltsTriggered.WithLabelValues(symbol, kind).Inc()
}

// UpdatePredictorStatus обновляет статус соединения
func UpdatePredictorStatus(symbol string, connected bool) {
	if connected {
		PredictorConnected.WithLabelValues(symbol).Set(1)
	} else {
		PredictorConnected.WithLabelValues(symbol).Set(0)
	}
}
