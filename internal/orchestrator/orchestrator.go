package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/smartcab-platform/transaction-service/internal/domain"
	"github.com/smartcab-platform/transaction-service/pkg/cloudevents"
	"github.com/smartcab-platform/transaction-service/pkg/logging"
	"github.com/smartcab-platform/transaction-service/pkg/metrics"
	"github.com/smartcab-platform/transaction-service/pkg/mongodb"
	"github.com/smartcab-platform/transaction-service/pkg/resilience"
)

// MessageBus publishes cabinet events. Implemented by the Kafka adapter in
// infrastructure; faked in tests.
type MessageBus interface {
	// PublishBinCommand publishes on the bin command channel consumed by
	// cabinet controllers
	PublishBinCommand(ctx context.Context, event *cloudevents.CloudEvent) error

	// PublishProcessEvent publishes on the operator-facing status and
	// warning channels
	PublishProcessEvent(ctx context.Context, event *cloudevents.CloudEvent) error
}

// Config holds the orchestrator timing and retry budget
type Config struct {
	LockResultWait     time.Duration `yaml:"lockResultWait"`
	LockOpenRetries    int           `yaml:"lockOpenRetries"`
	ManualWait         time.Duration `yaml:"manualWait"`
	ManualPollInterval time.Duration `yaml:"manualPollInterval"`
	UserActionWait     time.Duration `yaml:"userActionWait"`
	BinClosedWait      time.Duration `yaml:"binClosedWait"`
	DiscrepancyHold    time.Duration `yaml:"discrepancyHold"`
	StepRetry          *resilience.RetryConfig
}

// DefaultConfig returns production defaults
func DefaultConfig() *Config {
	return &Config{
		LockResultWait:     10 * time.Second,
		LockOpenRetries:    3,
		ManualWait:         60 * time.Second,
		ManualPollInterval: 2 * time.Second,
		UserActionWait:     30 * time.Second,
		BinClosedWait:      30 * time.Second,
		DiscrepancyHold:    5 * time.Minute,
		StepRetry:          resilience.DefaultRetryConfig(),
	}
}

// Orchestrator runs transaction plans against cabinet hardware, one
// goroutine per transaction. It owns the registry of live orchestrations
// and the bin lease table.
type Orchestrator struct {
	registry     *Registry
	leases       *BinLeases
	transactions domain.TransactionRepository
	bins         domain.BinRepository
	stock        domain.StockRepository
	bus          MessageBus
	scale        Scale
	factory      *cloudevents.EventFactory
	logger       *logging.Logger
	metrics      *metrics.Metrics
	config       *Config
}

// New creates an Orchestrator
func New(
	registry *Registry,
	transactions domain.TransactionRepository,
	bins domain.BinRepository,
	stock domain.StockRepository,
	bus MessageBus,
	scale Scale,
	logger *logging.Logger,
	m *metrics.Metrics,
	config *Config,
) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Orchestrator{
		registry:     registry,
		leases:       NewBinLeases(),
		transactions: transactions,
		bins:         bins,
		stock:        stock,
		bus:          bus,
		scale:        scale,
		factory:      cloudevents.NewEventFactory(cloudevents.SourceTransactionService),
		logger:       logger.WithComponent("orchestrator"),
		metrics:      m,
		config:       config,
	}
}

// Registry exposes the live context registry for the inbound dispatcher
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Start registers an orchestration context for the transaction and launches
// its execution goroutine. Fails with ErrDuplicateContext if the
// transaction is already running.
func (o *Orchestrator) Start(ctx context.Context, tx *domain.Transaction) (*OrchestrationContext, error) {
	machine := NewMachine(tx.TransactionID, o.logger, o.metrics)
	octx := NewOrchestrationContext(tx.TransactionID, machine)

	if err := o.registry.Register(tx.TransactionID, octx); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	octx.bindCancel(cancel)

	go o.run(runCtx, octx, tx)

	return octx, nil
}

// Shutdown cancels every live orchestration. In-flight transactions move to
// FAILED with the given reason.
func (o *Orchestrator) Shutdown(reason string) {
	o.registry.CancelAll(reason)
}

// run drives one transaction from start to a terminal state. The deferred
// block guarantees the registry entry is removed exactly once even if the
// orchestration panics.
func (o *Orchestrator) run(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction) {
	log := o.logger.WithTransactionID(tx.TransactionID)

	defer func() {
		if r := recover(); r != nil {
			log.Panic(ctx, r)
			o.failTransaction(ctx, octx, tx, fmt.Sprintf("orchestration panic: %v", r))
		}
		o.registry.Deregister(tx.TransactionID)
		if o.metrics != nil {
			o.metrics.RecordTransactionCompleted(string(tx.Type), string(tx.Status), time.Since(tx.CreatedAt))
		}
	}()

	machine := octx.Machine
	machine.Fire(ctx, EventStart)
	machine.Fire(ctx, EventBusConnected)

	if err := tx.Start(); err != nil {
		o.failTransaction(ctx, octx, tx, fmt.Sprintf("cannot start transaction: %v", err))
		return
	}
	if err := o.saveTransaction(ctx, tx); err != nil {
		if ctx.Err() != nil {
			o.cancelTransaction(ctx, octx, tx)
			return
		}
		o.failTransaction(ctx, octx, tx, fmt.Sprintf("persisting start failed: %v", err))
		return
	}
	if o.metrics != nil {
		o.metrics.RecordTransactionStarted(string(tx.Type))
	}

	for i := range tx.ExecutionSteps {
		if ctx.Err() != nil {
			o.cancelTransaction(ctx, octx, tx)
			return
		}

		step := &tx.ExecutionSteps[i]
		machine.Fire(ctx, EventProcessItem)

		if err := o.executeStep(ctx, octx, tx, step); err != nil {
			if ctx.Err() != nil {
				o.cancelTransaction(ctx, octx, tx)
				return
			}
			machine.Fire(ctx, EventErrorOccurred)
			o.failTransaction(ctx, octx, tx, err.Error())
			return
		}

		machine.Fire(ctx, EventTransactionUpdated)
	}

	machine.Fire(ctx, EventAllItemsProcessed)

	if err := tx.Complete(); err != nil {
		o.failTransaction(ctx, octx, tx, fmt.Sprintf("cannot complete transaction: %v", err))
		return
	}
	if err := o.saveTransaction(ctx, tx); err != nil {
		log.WithError(err).Error("failed to persist completed transaction")
	}

	o.publishStatus(ctx, octx, tx, "")
	log.WithFields(map[string]any{"status": string(tx.Status)}).Info("transaction finished")
}

// executeStep runs one bin visit end to end. Hardware failures and
// discrepancies are contained here and degrade the outcome; only
// infrastructure failures return an error and abort the transaction.
func (o *Orchestrator) executeStep(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, step *domain.ExecutionStep) error {
	log := o.logger.WithTransactionID(tx.TransactionID).WithFields(map[string]any{
		"stepId": step.StepID,
		"binId":  step.BinID,
	})
	machine := octx.Machine
	stepStart := time.Now()

	bin, err := o.bins.FindByID(ctx, step.BinID)
	if err != nil {
		return fmt.Errorf("loading bin %s: %w", step.BinID, err)
	}
	if bin == nil {
		return fmt.Errorf("bin %s referenced by step %s does not exist", step.BinID, step.StepID)
	}

	// A failed bin skips its step without failing the transaction.
	if bin.IsFailed {
		log.Warn("skipping step, bin is marked failed")
		machine.Fire(ctx, EventSkipItem)
		return o.skipStep(ctx, tx, step, "bin marked as failed hardware")
	}

	if err := o.leases.Acquire(step.BinID, tx.TransactionID); err != nil {
		// Another transaction is mid-operation at this bin. Wait for the
		// lease with the step retry budget before giving up.
		_, err = resilience.RetryWithResult(ctx, o.config.StepRetry, func() (struct{}, error) {
			return struct{}{}, o.leases.Acquire(step.BinID, tx.TransactionID)
		})
		if err != nil {
			log.WithError(err).Warn("bin lease unavailable, skipping step")
			machine.Fire(ctx, EventSkipItem)
			return o.skipStep(ctx, tx, step, "bin busy with another transaction")
		}
	}
	defer o.leases.Release(step.BinID, tx.TransactionID)

	octx.setCurrentBin(step.BinID)
	defer octx.setCurrentBin("")

	if err := tx.BeginStep(step.StepID); err != nil {
		return fmt.Errorf("beginning step %s: %w", step.StepID, err)
	}
	if err := o.saveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("persisting step start: %w", err)
	}
	o.publishStatus(ctx, octx, tx, step.StepID)

	// Baseline capture failures ride the open retry budget rather than
	// failing separately; the baseline is retaken on each attempt.
	var baseline map[string]float64

	opened := false
	for attempt := 1; attempt <= o.config.LockOpenRetries; attempt++ {
		baseline, err = o.scale.CaptureBaseline(ctx, step.BinID)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"attempt": attempt}).Warn("baseline capture failed")
			machine.Fire(ctx, EventRetry)
			continue
		}

		if o.openBin(ctx, octx, tx, bin) {
			opened = true
			break
		}

		failed := bin.RecordFailedOpen()
		if saveErr := o.bins.Save(ctx, bin); saveErr != nil {
			log.WithError(saveErr).Error("failed to persist bin open attempt")
		}
		if failed {
			break
		}
		machine.Fire(ctx, EventRetry)
	}

	if !opened && !bin.IsFailed {
		// Manual-intervention window: an operator may open the bin by
		// physical override. Poll the bin state until it unlocks, fails,
		// or the window closes.
		opened = o.awaitManualIntervention(ctx, octx, bin)
	}

	if !opened {
		if !bin.IsFailed {
			bin.MarkFailed()
		}
		if saveErr := o.bins.Save(ctx, bin); saveErr != nil {
			log.WithError(saveErr).Error("failed to persist failed bin")
		}
		if o.metrics != nil {
			o.metrics.RecordBinMarkedFailed()
		}
		tx.AddDomainEvent(&domain.BinMarkedFailedEvent{
			TransactionID: tx.TransactionID,
			BinID:         bin.BinID,
			CabinetID:     bin.CabinetID,
			Attempts:      bin.FailedOpenAttempts,
			FailedAt:      time.Now(),
		})

		log.Warn("bin could not be opened, marked failed and step skipped")
		machine.Fire(ctx, EventSkipItem)
		return o.skipStep(ctx, tx, step, "bin failed to open")
	}

	machine.Fire(ctx, EventLockOpenSuccess)
	bin.MarkOpened()
	if err := o.bins.Save(ctx, bin); err != nil {
		log.WithError(err).Error("failed to persist opened bin")
	}
	o.publishStatus(ctx, octx, tx, step.StepID)

	// The user takes or places items. A force-skip closes the bin without
	// waiting for them.
	octx.setAwaitingUser(true)
	forced := o.awaitUserAction(ctx, octx, step)
	octx.setAwaitingUser(false)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	machine.Fire(ctx, EventUserActionComplete)
	o.closeBin(ctx, octx, tx, bin)
	machine.Fire(ctx, EventBinClosed)

	current, err := o.scale.ReadCurrent(ctx, step.BinID)
	if err != nil {
		return fmt.Errorf("reading closing weights for bin %s: %w", step.BinID, err)
	}

	locations, err := o.binLocations(ctx, step.BinID)
	if err != nil {
		return err
	}

	outcomes := measureOutcomes(tx.Type, step.Actions(), locations, baseline, current)
	violations := keepTrackViolations(step.KeepTrackItems, locations, baseline, current)

	discrepancies := violations
	for _, out := range outcomes {
		if !out.valid {
			discrepancies = append(discrepancies, DiscrepancyItem{
				ItemID:      out.action.ItemID,
				LoadcellID:  out.action.LoadcellID,
				RequestQty:  out.action.RequestQty,
				ActualQty:   out.qtyChanged,
				Description: out.detail,
			})
		}
	}

	wasForced := forced
	if len(discrepancies) > 0 {
		confirmed, forcedHold := o.holdForDiscrepancy(ctx, octx, tx, step, discrepancies)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !confirmed {
			return fmt.Errorf("discrepancy on step %s unresolved within hold window", step.StepID)
		}
		wasForced = wasForced || forcedHold
	}

	for _, out := range outcomes {
		event := domain.TransactionEvent{
			EventID:         mongodb.GenerateIDString(),
			TransactionID:   tx.TransactionID,
			StepID:          step.StepID,
			BinID:           step.BinID,
			ItemID:          out.action.ItemID,
			QuantityBefore:  out.qtyBefore,
			QuantityAfter:   out.qtyAfter,
			QuantityChanged: out.qtyChanged,
			IsValid:         out.valid,
			Forced:          wasForced && !out.valid,
			CreatedAt:       time.Now(),
		}
		if out.detail != "" {
			event.Errors = []string{out.detail}
		}
		tx.AppendEvent(event)

		if out.valid {
			delta := -out.qtyChanged
			if tx.Type != domain.TransactionTypeIssue {
				delta = out.qtyChanged
			}
			if err := o.stock.UpdateAvailableQty(ctx, out.action.LoadcellID, delta); err != nil {
				log.WithError(err).Error("failed to update stock quantity")
			}
			o.recordMovement(ctx, tx, step.BinID, out)
		}
	}

	if err := tx.CompleteStep(step.StepID); err != nil {
		return fmt.Errorf("completing step %s: %w", step.StepID, err)
	}
	if err := o.saveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("persisting step completion: %w", err)
	}

	stepStatus := "completed"
	if len(discrepancies) > 0 {
		stepStatus = "discrepancy"
	}
	if o.metrics != nil {
		o.metrics.RecordStepExecuted(string(tx.Type), stepStatus, time.Since(stepStart))
	}

	return nil
}

// openBin publishes the open-lock command and waits for the correlated
// result. Returns true on confirmed open.
func (o *Orchestrator) openBin(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, bin *domain.Bin) bool {
	started := time.Now()
	cmd := OpenBinCommand{
		TransactionID:    tx.TransactionID,
		BinID:            bin.BinID,
		LockControllerID: bin.LockControllerID,
		LockChannel:      bin.LockChannel,
	}

	event := o.factory.CreateBinEvent(ctx, cloudevents.BinOpenRequested, tx.TransactionID, bin.BinID, cmd)
	if err := o.bus.PublishBinCommand(ctx, event); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to publish open command")
		return false
	}

	result, outcome := await(ctx, octx.lockResults, o.config.LockResultWait)
	success := outcome == awaitDelivered && result.Success && result.BinID == bin.BinID

	o.logger.HardwareCommand(ctx, tx.TransactionID, bin.BinID, "open", success, time.Since(started))
	if o.metrics != nil {
		o.metrics.RecordBinOpenAttempt(success)
		o.metrics.RecordLockResponse("open", time.Since(started))
	}

	return success
}

// closeBin publishes the close-lock command and waits briefly for the
// closed confirmation. A missing confirmation is logged but does not block
// the step; the weight re-read is the authoritative check.
func (o *Orchestrator) closeBin(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, bin *domain.Bin) {
	started := time.Now()
	cmd := CloseBinCommand{TransactionID: tx.TransactionID, BinID: bin.BinID}

	event := o.factory.CreateBinEvent(ctx, cloudevents.BinCloseRequested, tx.TransactionID, bin.BinID, cmd)
	if err := o.bus.PublishBinCommand(ctx, event); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to publish close command")
	}

	_, outcome := await(ctx, octx.binClosed, o.config.BinClosedWait)
	confirmed := outcome == awaitDelivered

	bin.MarkClosed()
	if err := o.bins.Save(ctx, bin); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to persist closed bin")
	}

	o.logger.HardwareCommand(ctx, tx.TransactionID, bin.BinID, "close", confirmed, time.Since(started))
	if o.metrics != nil {
		o.metrics.RecordLockResponse("close", time.Since(started))
	}
}

// awaitManualIntervention polls the bin after exhausted open retries. An
// operator can open it with a physical key; the poll detects the unlock.
// Returns true if the bin ended up open.
func (o *Orchestrator) awaitManualIntervention(ctx context.Context, octx *OrchestrationContext, bin *domain.Bin) bool {
	deadline := time.Now().Add(o.config.ManualWait)
	ticker := time.NewTicker(o.config.ManualPollInterval)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return false
		case result := <-octx.lockResults:
			if result.Success && result.BinID == bin.BinID {
				return true
			}
		case <-ticker.C:
			fresh, err := o.bins.FindByID(ctx, bin.BinID)
			if err != nil || fresh == nil {
				continue
			}
			if fresh.IsFailed {
				bin.IsFailed = true
				return false
			}
			if !fresh.IsLocked {
				return true
			}
		}
	}

	return false
}

// awaitUserAction waits for the user to finish at the open bin, or for an
// operator force-skip, or for the window to expire. Returns true when the
// step was forced or timed out rather than completed by the user.
func (o *Orchestrator) awaitUserAction(ctx context.Context, octx *OrchestrationContext, step *domain.ExecutionStep) bool {
	_, force, gotUser, outcome := awaitEither(ctx, octx.userActions, octx.forceNext, o.config.UserActionWait)

	switch outcome {
	case awaitDelivered:
		if gotUser {
			return false
		}
		octx.Machine.SetNextRequestItem(force.IsNextRequestItem)
		return true
	case awaitTimedOut:
		o.logger.WithTransactionID(octx.TransactionID).WithFields(map[string]any{
			"stepId": step.StepID,
		}).Warn("user action window expired, closing bin")
		return true
	default:
		return false
	}
}

// holdForDiscrepancy blocks advance after a quantity mismatch until an
// operator acknowledges or forces past it. Returns whether advance was
// confirmed and whether it was forced.
func (o *Orchestrator) holdForDiscrepancy(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, step *domain.ExecutionStep, items []DiscrepancyItem) (confirmed, forced bool) {
	machine := octx.Machine
	machine.SetNextRequestItem(false)
	machine.SetCloseWarningPopup(true)

	if err := tx.Hold(fmt.Sprintf("discrepancy at bin %s", step.BinID)); err == nil {
		if saveErr := o.saveTransaction(ctx, tx); saveErr != nil {
			o.logger.WithError(saveErr).WithTransactionID(tx.TransactionID).Error("failed to persist held transaction")
		}
	}

	// Reopen the force-next accept window for the duration of the hold.
	octx.setHolding(true)
	defer octx.setHolding(false)

	tx.AddDomainEvent(&domain.DiscrepancyDetectedEvent{
		TransactionID: tx.TransactionID,
		StepID:        step.StepID,
		BinID:         step.BinID,
		ItemCount:     len(items),
		DetectedAt:    time.Now(),
	})
	if o.metrics != nil {
		o.metrics.RecordDiscrepancyDetected(string(tx.Type))
	}

	warning := DiscrepancyWarning{
		TransactionID:       tx.TransactionID,
		StepID:              step.StepID,
		BinID:               step.BinID,
		IsCloseWarningPopup: true,
		IsNextRequestItem:   false,
		Items:               items,
	}
	event := o.factory.CreateBinEvent(ctx, cloudevents.ProcessWarningRaised, tx.TransactionID, step.BinID, warning)
	if err := o.bus.PublishProcessEvent(ctx, event); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to publish discrepancy warning")
	}

	// The hold persists until a confirming ack, a force, or the window
	// expires. An ack that merely closes the popup re-enters the wait with
	// the remaining budget.
	deadline := time.Now().Add(o.config.DiscrepancyHold)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, false
		}

		ack, force, gotAck, outcome := awaitEither(ctx, octx.warningAcks, octx.forceNext, remaining)
		if outcome != awaitDelivered {
			return false, false
		}

		if gotAck {
			machine.SetCloseWarningPopup(ack.IsCloseWarningPopup)
			machine.SetNextRequestItem(ack.IsNextRequestItem)
			machine.Fire(ctx, EventWarningPopupClosed)
			if !ack.IsNextRequestItem {
				o.logger.WithTransactionID(tx.TransactionID).Info("warning acknowledged without confirmation, hold continues")
				continue
			}
			confirmed = true
			forced = false
		} else {
			machine.SetCloseWarningPopup(false)
			machine.SetNextRequestItem(force.IsNextRequestItem)
			confirmed = true
			forced = true

			tx.AddDomainEvent(&domain.ForcedAdvanceEvent{
				TransactionID: tx.TransactionID,
				StepID:        step.StepID,
				Operator:      force.Operator,
				ForcedAt:      time.Now(),
			})
		}
		break
	}

	if confirmed {
		if err := tx.Resume(); err == nil {
			if saveErr := o.saveTransaction(ctx, tx); saveErr != nil {
				o.logger.WithError(saveErr).WithTransactionID(tx.TransactionID).Error("failed to persist resumed transaction")
			}
		}
	}

	return confirmed, forced
}

// skipStep records a skipped step and persists the transaction
func (o *Orchestrator) skipStep(ctx context.Context, tx *domain.Transaction, step *domain.ExecutionStep, reason string) error {
	if err := tx.SkipStep(step.StepID, reason); err != nil {
		return fmt.Errorf("skipping step %s: %w", step.StepID, err)
	}
	if err := o.saveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("persisting skipped step: %w", err)
	}
	if o.metrics != nil {
		o.metrics.RecordStepExecuted(string(tx.Type), "skipped", 0)
	}
	return nil
}

// recordMovement keeps the issue history that return planning walks: issues
// append a record, returns consume outstanding quantity from prior records
func (o *Orchestrator) recordMovement(ctx context.Context, tx *domain.Transaction, binID string, out itemOutcome) {
	var err error
	switch tx.Type {
	case domain.TransactionTypeIssue:
		err = o.stock.SaveIssueRecord(ctx, &domain.IssueRecord{
			ActorID:    tx.UserID,
			ItemID:     out.action.ItemID,
			LoadcellID: out.action.LoadcellID,
			BinID:      binID,
			IssuedQty:  out.qtyChanged,
			IssuedAt:   time.Now(),
		})
	case domain.TransactionTypeReturn:
		err = o.stock.RecordReturn(ctx, tx.UserID, out.action.ItemID, out.action.LoadcellID, out.qtyChanged)
	}

	if err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to record stock movement")
	}
}

// binLocations indexes the bin's stock locations by loadcell id
func (o *Orchestrator) binLocations(ctx context.Context, binID string) (map[string]*domain.StockLocation, error) {
	locations, err := o.stock.FindLocationsByBin(ctx, binID)
	if err != nil {
		return nil, fmt.Errorf("loading stock locations for bin %s: %w", binID, err)
	}

	byLoadcell := make(map[string]*domain.StockLocation, len(locations))
	for _, loc := range locations {
		byLoadcell[loc.LoadcellID] = loc
	}
	return byLoadcell, nil
}

// publishStatus reports the current execution flags to operator UIs
func (o *Orchestrator) publishStatus(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, stepID string) {
	flags := octx.Machine.Flags()
	status := ProcessStatus{
		TransactionID:     tx.TransactionID,
		StepID:            stepID,
		BinID:             octx.CurrentBinID(),
		State:             string(octx.Machine.State()),
		IsProcessingItem:  flags.IsProcessingItem,
		IsNextRequestItem: flags.IsNextRequestItem,
	}

	event := o.factory.CreateTransactionEvent(ctx, cloudevents.ProcessStatusReported, tx.TransactionID, status)
	if err := o.bus.PublishProcessEvent(ctx, event); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Warn("failed to publish process status")
	}
}

// saveTransaction persists the aggregate with the infrastructure retry
// budget. Exhausting it is an infrastructure failure that aborts the
// transaction.
func (o *Orchestrator) saveTransaction(ctx context.Context, tx *domain.Transaction) error {
	return resilience.Retry(ctx, o.config.StepRetry, func() error {
		return o.transactions.Save(ctx, tx)
	})
}

func (o *Orchestrator) failTransaction(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction, reason string) {
	octx.Machine.Fire(ctx, EventErrorOccurred)

	if tx.IsTerminal() {
		return
	}
	if err := tx.Fail(reason); err != nil {
		return
	}
	if err := o.transactions.Save(context.WithoutCancel(ctx), tx); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to persist failed transaction")
	}
	o.logger.WithTransactionID(tx.TransactionID).WithFields(map[string]any{
		"reason": reason,
	}).Error("transaction failed")
}

func (o *Orchestrator) cancelTransaction(ctx context.Context, octx *OrchestrationContext, tx *domain.Transaction) {
	octx.Machine.Fire(ctx, EventCancel)

	reason := octx.CancelReason()
	if reason == "" {
		reason = "cancelled"
	}

	if tx.IsTerminal() {
		return
	}
	if err := tx.Cancel(reason); err != nil {
		return
	}
	if err := o.transactions.Save(context.WithoutCancel(ctx), tx); err != nil {
		o.logger.WithError(err).WithTransactionID(tx.TransactionID).Error("failed to persist cancelled transaction")
	}
	o.logger.WithTransactionID(tx.TransactionID).WithFields(map[string]any{
		"reason": reason,
	}).Info("transaction cancelled")
}
