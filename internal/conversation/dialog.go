package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/healthgpt/clinic-assistant/internal/calendar"
	"github.com/healthgpt/clinic-assistant/internal/insurance"
	"github.com/healthgpt/clinic-assistant/internal/observability/metrics"
	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

// Sender delivers an outbound message to a correspondent.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}

// SlotDirectory is the read side of the slot store the dialog consults.
type SlotDirectory interface {
	GetSlot(ctx context.Context, id string) (*scheduling.Slot, error)
	ListAvailable(ctx context.Context, from, to time.Time) ([]scheduling.Slot, error)
}

// SlotBooker claims slots on behalf of the dialog.
type SlotBooker interface {
	Claim(ctx context.Context, slotID string, draft scheduling.Draft) (*scheduling.Reservation, error)
}

// StaffNotifier alerts clinic staff about escalations and new bookings.
type StaffNotifier interface {
	NotifyHumanTakeover(ctx context.Context, correspondentID, lastMessage string) error
	NotifyReservation(ctx context.Context, res *scheduling.Reservation, slot scheduling.Slot) error
}

// Turn is the outcome of processing one inbound message.
type Turn struct {
	Reply   string
	Session *Session
}

const (
	defaultListingWindow    = 28 * 24 * time.Hour
	defaultCollaboratorWait = 5 * time.Second
	maxOfferedSlots         = 5
)

// Orchestrator runs the booking state machine. Construct once and share; all
// per-correspondent state lives in the session store.
type Orchestrator struct {
	sessions  SessionStore
	slots     SlotDirectory
	booker    SlotBooker
	insurance *insurance.Validator
	sender    Sender
	logger    *logging.Logger

	intents          IntentExtractor
	calendar         calendar.Sync
	notifier         StaffNotifier
	metrics          *metrics.DialogMetrics
	schedulingLink   string
	clinicName       string
	listingWindow    time.Duration
	collaboratorWait time.Duration
	now              func() time.Time

	locks *keyedMutex
}

// OrchestratorOption customizes optional collaborators and tuning knobs.
type OrchestratorOption func(*Orchestrator)

// WithIntentExtractor wires the NLU collaborator. Without it the dialog relies
// on keyword matching alone.
func WithIntentExtractor(extractor IntentExtractor) OrchestratorOption {
	return func(o *Orchestrator) { o.intents = extractor }
}

// WithCalendarSync wires calendar event creation after successful claims.
func WithCalendarSync(sync calendar.Sync) OrchestratorOption {
	return func(o *Orchestrator) { o.calendar = sync }
}

// WithStaffNotifier wires staff alerts for takeovers and reservations.
func WithStaffNotifier(notifier StaffNotifier) OrchestratorOption {
	return func(o *Orchestrator) { o.notifier = notifier }
}

// WithDialogMetrics wires booking outcome counters.
func WithDialogMetrics(m *metrics.DialogMetrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSchedulingLink sets the self-service scheduling URL offered to patients.
func WithSchedulingLink(link string) OrchestratorOption {
	return func(o *Orchestrator) { o.schedulingLink = link }
}

// WithClinicName sets the clinic name used in patient-facing messages.
func WithClinicName(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		if strings.TrimSpace(name) != "" {
			o.clinicName = name
		}
	}
}

// WithListingWindow bounds how far ahead slots are offered.
func WithListingWindow(window time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if window > 0 {
			o.listingWindow = window
		}
	}
}

// WithCollaboratorTimeout bounds calendar and outbound send calls.
func WithCollaboratorTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if timeout > 0 {
			o.collaboratorWait = timeout
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the state machine. sessions, slots, booker, validator
// and sender are required; collaborators are optional.
func NewOrchestrator(sessions SessionStore, slots SlotDirectory, booker SlotBooker, validator *insurance.Validator, sender Sender, logger *logging.Logger, opts ...OrchestratorOption) *Orchestrator {
	if sessions == nil {
		panic("conversation: session store cannot be nil")
	}
	if slots == nil {
		panic("conversation: slot directory cannot be nil")
	}
	if booker == nil {
		panic("conversation: slot booker cannot be nil")
	}
	if validator == nil {
		panic("conversation: insurance validator cannot be nil")
	}
	if sender == nil {
		panic("conversation: sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	o := &Orchestrator{
		sessions:         sessions,
		slots:            slots,
		booker:           booker,
		insurance:        validator,
		sender:           sender,
		logger:           logger,
		clinicName:       "HealthGPT",
		listingWindow:    defaultListingWindow,
		collaboratorWait: defaultCollaboratorWait,
		now:              time.Now,
		locks:            newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// effects are side effects a handler requests for after the session is saved.
type effects struct {
	takeover    bool
	reservation *scheduling.Reservation
	slot        *scheduling.Slot
}

// HandleMessage runs one dialog turn for a correspondent. Turns for the same
// correspondent are processed strictly in order; different correspondents run
// in parallel. The new state is persisted before the reply is sent, so a
// failed send never loses state.
func (o *Orchestrator) HandleMessage(ctx context.Context, correspondentID, text string) (*Turn, error) {
	correspondentID = strings.TrimSpace(correspondentID)
	if correspondentID == "" {
		return nil, errors.New("conversation: correspondentID required")
	}

	unlock := o.locks.lock(correspondentID)
	defer unlock()

	sess, err := o.sessions.Load(ctx, correspondentID)
	if err != nil {
		return nil, fmt.Errorf("conversation: handle message: %w", err)
	}
	if sess == nil {
		sess = NewSession(correspondentID)
	}

	if sess.State.Silent() {
		o.logger.Debug("ignoring message in silent state",
			"correspondent_id", correspondentID, "state", sess.State)
		return &Turn{Session: sess}, nil
	}

	sig, sigErr := o.extract(ctx, text, sess)
	if sigErr != nil {
		o.logger.Warn("intent extraction failed",
			"error", sigErr, "correspondent_id", correspondentID, "state", sess.State)
	}

	var fx effects
	reply, next := o.dispatch(ctx, sess, text, sig, sigErr != nil, &fx)

	if next == StateHumanTakeover && sess.State != StateHumanTakeover {
		o.metrics.ObserveTakeover()
	}
	sess.State = next
	sess.UpdatedAt = o.now().UTC()
	if err := o.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("conversation: handle message: %w", err)
	}

	o.runEffects(ctx, sess, text, &fx)

	if reply != "" {
		sendCtx, cancel := context.WithTimeout(ctx, o.collaboratorWait)
		if err := o.sender.SendText(sendCtx, correspondentID, reply); err != nil {
			o.logger.Error("failed to send reply",
				"error", err, "correspondent_id", correspondentID, "state", sess.State)
		}
		cancel()
	}

	return &Turn{Reply: reply, Session: sess}, nil
}

// Reset wipes a correspondent's session so the bot starts over, used by staff
// after a human takeover is resolved.
func (o *Orchestrator) Reset(ctx context.Context, correspondentID string) error {
	correspondentID = strings.TrimSpace(correspondentID)
	if correspondentID == "" {
		return errors.New("conversation: correspondentID required")
	}

	unlock := o.locks.lock(correspondentID)
	defer unlock()

	if err := o.sessions.Delete(ctx, correspondentID); err != nil {
		return fmt.Errorf("conversation: reset session: %w", err)
	}
	o.logger.Info("session reset", "correspondent_id", correspondentID)
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, text string, sess *Session) (Signal, error) {
	if o.intents == nil {
		return Signal{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, o.collaboratorWait)
	defer cancel()
	return o.intents.ExtractIntent(ctx, text, sess)
}

func (o *Orchestrator) dispatch(ctx context.Context, sess *Session, text string, sig Signal, nluFailed bool, fx *effects) (string, State) {
	switch sess.State {
	case StateNew:
		return o.handleNew()
	case StateAwaitingChoice:
		return o.handleInitialChoice(text)
	case StateAwaitingType:
		return o.handleType(sess, text, sig, nluFailed, fx)
	case StateAwaitingInsurer:
		return o.handleInsurer(sess, text, sig)
	case StateAwaitingDocs:
		return o.handleDocs(sess)
	case StateAwaitingPreference:
		return o.handlePreference(ctx, sess, sig)
	case StateAwaitingSlotChoice:
		return o.handleSlotChoice(ctx, sess, text, sig, fx)
	default:
		// Unreachable for valid sessions; recover rather than crash.
		o.logger.Error("session in unknown state, restarting dialog",
			"correspondent_id", sess.CorrespondentID, "state", sess.State)
		sess.Context = Context{}
		return o.handleNew()
	}
}

func (o *Orchestrator) handleNew() (string, State) {
	return replyWelcome(o.clinicName, o.schedulingLink), StateAwaitingChoice
}

func (o *Orchestrator) handleInitialChoice(text string) (string, State) {
	if o.schedulingLink != "" && strings.Contains(normalize(text), "link") {
		return replySchedulingLink(o.clinicName, o.schedulingLink), StateRedirectedToLink
	}
	return replyAskType(), StateAwaitingType
}

func (o *Orchestrator) handleType(sess *Session, text string, sig Signal, nluFailed bool, fx *effects) (string, State) {
	norm := normalize(text)

	if strings.Contains(norm, "particular") || sig.WantsPrivate {
		sess.Context.IsPrivate = true
		fx.takeover = true
		return replyPrivateHandoff(o.clinicName), StateHumanTakeover
	}

	for _, kw := range []string{"convenio", "plano", "seguro"} {
		if strings.Contains(norm, kw) {
			return replyAskInsurer(), StateAwaitingInsurer
		}
	}

	if nluFailed {
		return replyClarify(), StateAwaitingType
	}
	return replyAskTypeAgain(), StateAwaitingType
}

func (o *Orchestrator) handleInsurer(sess *Session, text string, sig Signal) (string, State) {
	candidate := sig.InsuranceName
	if candidate == "" {
		candidate = text
	}

	plan, ok := o.insurance.PlanByName(candidate)
	if !ok {
		// The raw message is the fallback when NLU extracted a bad name.
		plan, ok = o.insurance.PlanByName(text)
	}
	if !ok {
		return replyInvalidInsurer(o.insurance.AcceptedPlanNames()), StateAwaitingType
	}

	sess.Context.InsuranceName = plan.Name
	sess.Context.InsuranceID = plan.ID
	o.insurance.Register(sess.CorrespondentID, plan.ID)
	return replyAskDocs(plan.Name), StateAwaitingDocs
}

func (o *Orchestrator) handleDocs(sess *Session) (string, State) {
	if sess.Context.InsuranceID != "" {
		if err := o.insurance.MarkDocumentsReceived(sess.CorrespondentID, sess.Context.InsuranceID); err != nil {
			o.logger.Warn("failed to confirm insurance documents",
				"error", err, "correspondent_id", sess.CorrespondentID)
		}
	}
	return replyAskPreference(), StateAwaitingPreference
}

func (o *Orchestrator) handlePreference(ctx context.Context, sess *Session, sig Signal) (string, State) {
	slots, err := o.listAvailable(ctx)
	if err != nil {
		o.logger.Error("failed to list available slots",
			"error", err, "correspondent_id", sess.CorrespondentID)
		return replyClarify(), StateAwaitingPreference
	}

	slots = preferSlots(slots, sig)
	if len(slots) == 0 {
		return replyNoSlots(), StateAwaitingPreference
	}
	if len(slots) > maxOfferedSlots {
		slots = slots[:maxOfferedSlots]
	}

	sess.Context.OfferedSlotIDs = slotIDs(slots)
	return replySlotList(slots), StateAwaitingSlotChoice
}

func (o *Orchestrator) handleSlotChoice(ctx context.Context, sess *Session, text string, sig Signal, fx *effects) (string, State) {
	chosenID := resolveChoice(text, sess.Context.OfferedSlotIDs)
	if chosenID == "" && sig.Confirmed && len(sess.Context.OfferedSlotIDs) == 1 {
		// "Pode ser" with a single option on the table is an acceptance.
		chosenID = sess.Context.OfferedSlotIDs[0]
	}
	if chosenID == "" {
		return o.reofferSlots(ctx, sess, false)
	}

	slot, err := o.slots.GetSlot(ctx, chosenID)
	if err != nil {
		if errors.Is(err, scheduling.ErrSlotNotFound) {
			return o.reofferSlots(ctx, sess, true)
		}
		o.logger.Error("failed to fetch chosen slot",
			"error", err, "slot_id", chosenID, "correspondent_id", sess.CorrespondentID)
		return replyClarify(), StateAwaitingSlotChoice
	}

	res, err := o.booker.Claim(ctx, chosenID, scheduling.Draft{
		Contact:       sess.CorrespondentID,
		IsPrivate:     sess.Context.IsPrivate,
		InsuranceName: sess.Context.InsuranceName,
		Reason:        "Consulta",
	})
	switch {
	case err == nil:
		o.metrics.ObserveReservation("booked")
	case errors.Is(err, scheduling.ErrConflict), errors.Is(err, scheduling.ErrSlotNotFound):
		o.metrics.ObserveReservation("conflict")
		return o.reofferSlots(ctx, sess, true)
	default:
		o.logger.Error("slot claim failed",
			"error", err, "slot_id", chosenID, "correspondent_id", sess.CorrespondentID)
		return replyClarify(), StateAwaitingSlotChoice
	}

	sess.Context.ReservedSlotID = slot.ID
	sess.Context.ReservationID = res.ID
	sess.Context.OfferedSlotIDs = nil

	if o.calendar != nil {
		calCtx, cancel := context.WithTimeout(ctx, o.collaboratorWait)
		eventID, calErr := o.calendar.CreateEvent(calCtx, calendar.Event{
			Summary:     "Consulta - " + sess.CorrespondentID,
			Description: appointmentDescription(sess, res),
			Start:       slot.Start,
			End:         slot.End,
		})
		cancel()
		if calErr != nil {
			o.logger.Error("calendar sync failed, booking kept",
				"error", calErr, "reservation_id", res.ID)
		} else {
			sess.Context.CalendarEventID = eventID
		}
	}

	fx.reservation = res
	fx.slot = slot
	return replyConfirmation(o.clinicName, slot.Start), StateAppointmentPending
}

// reofferSlots re-fetches availability after an invalid pick or lost race.
// With alternatives the patient picks again; with none the dialog escalates.
func (o *Orchestrator) reofferSlots(ctx context.Context, sess *Session, taken bool) (string, State) {
	slots, err := o.listAvailable(ctx)
	if err != nil {
		o.logger.Error("failed to refresh available slots",
			"error", err, "correspondent_id", sess.CorrespondentID)
		return replyClarify(), StateAwaitingSlotChoice
	}
	if len(slots) == 0 {
		sess.Context.OfferedSlotIDs = nil
		return replyEscalation(o.clinicName), StateHumanTakeover
	}
	if len(slots) > maxOfferedSlots {
		slots = slots[:maxOfferedSlots]
	}

	sess.Context.OfferedSlotIDs = slotIDs(slots)
	if taken {
		return replySlotTaken(slots), StateAwaitingSlotChoice
	}
	return replySlotList(slots), StateAwaitingSlotChoice
}

func (o *Orchestrator) listAvailable(ctx context.Context) ([]scheduling.Slot, error) {
	from := o.now()
	return o.slots.ListAvailable(ctx, from, from.Add(o.listingWindow))
}

func (o *Orchestrator) runEffects(ctx context.Context, sess *Session, lastMessage string, fx *effects) {
	if o.notifier == nil {
		return
	}
	if fx.takeover {
		nctx, cancel := context.WithTimeout(ctx, o.collaboratorWait)
		if err := o.notifier.NotifyHumanTakeover(nctx, sess.CorrespondentID, lastMessage); err != nil {
			o.logger.Error("failed to notify staff of takeover",
				"error", err, "correspondent_id", sess.CorrespondentID)
		}
		cancel()
	}
	if fx.reservation != nil && fx.slot != nil {
		nctx, cancel := context.WithTimeout(ctx, o.collaboratorWait)
		if err := o.notifier.NotifyReservation(nctx, fx.reservation, *fx.slot); err != nil {
			o.logger.Error("failed to notify staff of reservation",
				"error", err, "reservation_id", fx.reservation.ID)
		}
		cancel()
	}
}

func appointmentDescription(sess *Session, res *scheduling.Reservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Contato: %s\n", sess.CorrespondentID)
	if sess.Context.InsuranceName != "" {
		fmt.Fprintf(&b, "Convênio: %s\n", sess.Context.InsuranceName)
	} else if sess.Context.IsPrivate {
		b.WriteString("Atendimento: Particular\n")
	}
	fmt.Fprintf(&b, "Reserva: %s", res.ID)
	return b.String()
}

// resolveChoice maps the patient's reply to an offered slot id: either the id
// itself or a 1-based index into the offered list.
func resolveChoice(text string, offered []string) string {
	text = strings.TrimSpace(text)
	if text == "" || len(offered) == 0 {
		return ""
	}
	for _, id := range offered {
		if strings.EqualFold(text, id) {
			return id
		}
	}
	if n, err := strconv.Atoi(strings.TrimSuffix(text, ".")); err == nil {
		if n >= 1 && n <= len(offered) {
			return offered[n-1]
		}
	}
	return ""
}

// preferSlots narrows the list to slots matching a mentioned DD/MM date and
// HH:MM time. Each filter only applies when it leaves at least one option, so
// an unmatchable preference falls back to the full list.
func preferSlots(slots []scheduling.Slot, sig Signal) []scheduling.Slot {
	slots = filterSlots(slots, "02/01", sig.MentionedDate)
	return filterSlots(slots, "15:04", sig.MentionedTime)
}

func filterSlots(slots []scheduling.Slot, layout, want string) []scheduling.Slot {
	want = strings.TrimSpace(want)
	if want == "" {
		return slots
	}

	var filtered []scheduling.Slot
	for _, slot := range slots {
		if slot.Start.Format(layout) == want {
			filtered = append(filtered, slot)
		}
	}
	if len(filtered) == 0 {
		return slots
	}
	return filtered
}

func slotIDs(slots []scheduling.Slot) []string {
	ids := make([]string, len(slots))
	for i, slot := range slots {
		ids[i] = slot.ID
	}
	return ids
}

// normalize lowercases and strips the accents that matter for keyword checks.
func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer(
		"á", "a", "à", "a", "â", "a", "ã", "a",
		"é", "e", "ê", "e",
		"í", "i",
		"ó", "o", "ô", "o", "õ", "o",
		"ú", "u",
		"ç", "c",
	)
	return replacer.Replace(text)
}
