package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/notclassx-sys/FAM-ROOM/internal/config"
	"github.com/notclassx-sys/FAM-ROOM/internal/engine"
	"github.com/notclassx-sys/FAM-ROOM/internal/models"
	"github.com/notclassx-sys/FAM-ROOM/internal/notify"
	"github.com/notclassx-sys/FAM-ROOM/internal/repository"
	"github.com/notclassx-sys/FAM-ROOM/internal/syncbus"

	"github.com/benbjohnson/clock"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	_ "github.com/lib/pq"
)

// EngineService 报警引擎服务（整合各层，每个房间一个实例）
type EngineService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	clock       clock.Clock
	logger      *zap.Logger
	roomID      string

	// 各层组件
	alertRepo      *repository.AlertRepository
	emergencyRepo  *repository.EmergencyLogRepository
	medicineRepo   *repository.MedicineRepository
	checkInRepo    *repository.CheckInRepository
	membershipRepo *repository.MembershipRepository

	bus        *syncbus.Bus
	escalation *engine.EscalationScheduler
	engine     *engine.Engine
	checkIns   *engine.CheckInTracker
	monitor    *engine.AdherenceMonitor
	escalator  *notify.MQTTEscalator
}

// NewEngineService 创建报警引擎服务
func NewEngineService(cfg *config.Config, logger *zap.Logger, roomID string) (*EngineService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Database.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxConns)
	}
	if cfg.Database.MaxIdle > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdle)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	clk := clock.New()

	// 3. 创建 Repository 层
	alertRepo := repository.NewAlertRepository(db, logger)
	emergencyRepo := repository.NewEmergencyLogRepository(db, logger)
	medicineRepo := repository.NewMedicineRepository(db, logger)
	checkInRepo := repository.NewCheckInRepository(db, logger)
	membershipRepo := repository.NewMembershipRepository(db, logger)

	// 4. 创建同步总线
	bus := syncbus.New(redisClient, clk, cfg.Sync.ChannelPrefix, cfg.Sync.PollInterval, logger)

	// 5. 升级动作：配置了 MQTT 网关则走网关，否则只记日志
	escalateFunc := notify.LogEscalator(logger)
	var escalator *notify.MQTTEscalator
	if cfg.MQTT.Enabled {
		escalator, err = notify.NewMQTTEscalator(&cfg.MQTT, roomID, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MQTT escalator: %w", err)
		}
		escalateFunc = escalator.Escalate
	}

	// 6. 创建引擎组件
	escalation := engine.NewEscalationScheduler(clk, escalateFunc, logger)
	debouncer := engine.NewTapDebouncer(cfg.Engine.Tap.Threshold, cfg.Engine.Tap.Window)
	alertEngine := engine.NewEngine(
		roomID,
		clk,
		alertRepo,
		emergencyRepo,
		bus,
		debouncer,
		escalation,
		cfg.Engine.Escalation.SOSDelay,
		cfg.Engine.Escalation.MedDelay,
		logger,
	)
	checkIns := engine.NewCheckInTracker(roomID, cfg.Engine.CheckInCooldown, clk, checkInRepo, bus, logger)
	monitor := engine.NewAdherenceMonitor(cfg.Engine.Adherence.OverdueMinutes, cfg.Engine.Adherence.ScanInterval, logger)

	return &EngineService{
		config:         cfg,
		db:             db,
		redisClient:    redisClient,
		clock:          clk,
		logger:         logger,
		roomID:         roomID,
		alertRepo:      alertRepo,
		emergencyRepo:  emergencyRepo,
		medicineRepo:   medicineRepo,
		checkInRepo:    checkInRepo,
		membershipRepo: membershipRepo,
		bus:            bus,
		escalation:     escalation,
		engine:         alertEngine,
		checkIns:       checkIns,
		monitor:        monitor,
		escalator:      escalator,
	}, nil
}

// Engine 报警引擎
func (s *EngineService) Engine() *engine.Engine {
	return s.engine
}

// CheckIns 打卡跟踪器
func (s *EngineService) CheckIns() *engine.CheckInTracker {
	return s.checkIns
}

// Bus 同步总线
func (s *EngineService) Bus() *syncbus.Bus {
	return s.bus
}

// Start 启动服务（阻塞直到 ctx 取消）
func (s *EngineService) Start(ctx context.Context) error {
	s.logger.Info("Starting alert engine service",
		zap.String("room_id", s.roomID),
		zap.Duration("scan_interval", s.config.Engine.Adherence.ScanInterval),
	)

	go s.runDayRollover(ctx)

	ticker := s.clock.Ticker(s.config.Engine.Adherence.ScanInterval)
	defer ticker.Stop()

	// 立即执行一次
	s.scanOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Alert engine service stopped")
			return nil
		case <-ticker.C:
			s.scanOnce(ctx)
		}
	}
}

// scanOnce 执行一轮服药检查
func (s *EngineService) scanOnce(ctx context.Context) {
	meds, err := s.medicineRepo.GetMedicines(ctx, s.roomID)
	if err != nil {
		s.logger.Error("Failed to load medicines for scan",
			zap.String("room_id", s.roomID),
			zap.Error(err),
		)
		// 继续执行，下一轮重试
		return
	}

	events := s.monitor.Scan(meds, s.clock.Now())
	for _, event := range events {
		if _, err := s.engine.ReportMissedDose(ctx, event); err != nil {
			// 撤销去重标记，窗口未过时下一轮扫描重试
			s.monitor.Unmark(event.ScheduleID, event.Date)
			s.logger.Error("Failed to report missed dose",
				zap.String("schedule_id", event.ScheduleID),
				zap.Error(err),
			)
		}
	}
}

// runDayRollover 日切任务：清除今日已服标记并重置去重表
func (s *EngineService) runDayRollover(ctx context.Context) {
	for {
		now := s.clock.Now()
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		timer := s.clock.Timer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.rolloverDay(ctx)
		}
	}
}

// rolloverDay 执行一次日切
func (s *EngineService) rolloverDay(ctx context.Context) {
	affected, err := s.medicineRepo.ResetTakenToday(ctx, s.roomID)
	if err != nil {
		s.logger.Error("Failed to reset taken_today at day rollover",
			zap.String("room_id", s.roomID),
			zap.Error(err),
		)
		// 去重表以自然日为键，即使落库失败也不会跨日重复报警
	}
	s.monitor.ResetDay()

	s.logger.Info("Day rollover completed",
		zap.String("room_id", s.roomID),
		zap.Int64("medicines_reset", affected),
	)

	if err := s.bus.Publish(ctx, s.roomID, syncbus.KindMedicines); err != nil {
		s.logger.Warn("Failed to publish rollover change",
			zap.Error(err),
		)
	}
}

// ToggleMedicineTaken 老人标记今日已服/未服
func (s *EngineService) ToggleMedicineTaken(ctx context.Context, medicineID string, taken bool) error {
	if err := s.medicineRepo.ToggleTaken(ctx, medicineID, taken); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, s.roomID, syncbus.KindMedicines); err != nil {
		s.logger.Warn("Failed to publish medicine change",
			zap.Error(err),
		)
	}
	return nil
}

// AddMedicine 照护端新增服药计划
func (s *EngineService) AddMedicine(ctx context.Context, med *models.MedicineSchedule) error {
	if err := s.medicineRepo.Save(ctx, med); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, s.roomID, syncbus.KindMedicines); err != nil {
		s.logger.Warn("Failed to publish medicine change",
			zap.Error(err),
		)
	}
	return nil
}

// DeleteMedicine 照护端删除服药计划
func (s *EngineService) DeleteMedicine(ctx context.Context, medicineID string) error {
	if err := s.medicineRepo.Delete(ctx, medicineID); err != nil {
		return err
	}
	if err := s.bus.Publish(ctx, s.roomID, syncbus.KindMedicines); err != nil {
		s.logger.Warn("Failed to publish medicine change",
			zap.Error(err),
		)
	}
	return nil
}

// Medicines 查询房间服药计划
func (s *EngineService) Medicines(ctx context.Context) ([]models.MedicineSchedule, error) {
	return s.medicineRepo.GetMedicines(ctx, s.roomID)
}

// EmergencyHistory 查询房间紧急历史
func (s *EngineService) EmergencyHistory(ctx context.Context) ([]models.EmergencyLog, error) {
	return s.emergencyRepo.ListByRoom(ctx, s.roomID)
}

// CheckInHistory 查询房间打卡历史
func (s *EngineService) CheckInHistory(ctx context.Context) ([]models.CheckIn, error) {
	return s.checkInRepo.ListByRoom(ctx, s.roomID)
}

// Members 查询房间成员（只读）
func (s *EngineService) Members(ctx context.Context) ([]models.Membership, error) {
	return s.membershipRepo.ListRoomMembers(ctx, s.roomID)
}

// Stop 停止服务
func (s *EngineService) Stop() error {
	s.logger.Info("Stopping alert engine service")

	// 取消全部布防中的升级定时器
	s.escalation.Close()

	if s.escalator != nil {
		s.escalator.Close()
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}
