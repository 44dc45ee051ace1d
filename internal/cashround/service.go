// Package cashround manages the rotation: who receives the weekly pot, in
// what order, and where the pointer currently stands. The pointer only
// moves inside meeting settlement transactions (advance on completion,
// retreat on reset).
package cashround

import (
	"fmt"
	"time"

	"sacco-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateRound creates a planned round with its member list. One full
// rotation pays every listed member once, so NumWeeks is the member count.
func CreateRound(tx *gorm.DB, saccoID uint, name string, startDate time.Time, weeklyAmount decimal.Decimal, memberIDs []uint, createdBy *uint) (*models.CashRound, error) {
	if !weeklyAmount.IsPositive() {
		return nil, fmt.Errorf("%w: weekly amount must be greater than 0", models.ErrInvalidAmount)
	}
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: a round needs at least one member", models.ErrInvalidAmount)
	}

	seen := make(map[uint]bool, len(memberIDs))
	for _, id := range memberIDs {
		if seen[id] {
			return nil, fmt.Errorf("%w: member %d listed twice", models.ErrInvalidAmount, id)
		}
		seen[id] = true

		var member models.SaccoMember
		if err := tx.First(&member, "id = ? AND sacco_id = ?", id, saccoID).Error; err != nil {
			return nil, fmt.Errorf("member %d not found in sacco %d: %w", id, saccoID, err)
		}
		if member.Status != models.MemberStatusActive {
			return nil, fmt.Errorf("%w: member %d is not active", models.ErrInvalidAmount, id)
		}
	}

	var lastNumber uint
	var prev models.CashRound
	if err := tx.Where("sacco_id = ?", saccoID).Order("round_number DESC").First(&prev).Error; err == nil {
		lastNumber = prev.RoundNumber
	}

	round := models.CashRound{
		SaccoID:         saccoID,
		Name:            name,
		RoundNumber:     lastNumber + 1,
		StartDate:       startDate,
		ExpectedEndDate: startDate.AddDate(0, 0, 7*len(memberIDs)),
		WeeklyAmount:    weeklyAmount,
		NumWeeks:        uint(len(memberIDs)),
		Status:          models.CashRoundPlanned,
		CreatedBy:       createdBy,
	}
	if err := tx.Create(&round).Error; err != nil {
		return nil, err
	}

	for i, id := range memberIDs {
		rm := models.CashRoundMember{
			CashRoundID:        round.ID,
			MemberID:           id,
			PositionInRotation: uint(i + 1),
			IsActive:           true,
		}
		if err := tx.Create(&rm).Error; err != nil {
			return nil, err
		}
	}

	return &round, nil
}

// CreateSchedule attaches the rotation pointer to a round. The order
// defaults to the round's member positions when none is given.
func CreateSchedule(tx *gorm.DB, roundID uint, rotationOrder []uint) (*models.CashRoundSchedule, error) {
	var round models.CashRound
	if err := tx.First(&round, roundID).Error; err != nil {
		return nil, fmt.Errorf("round %d not found: %w", roundID, err)
	}

	var existing models.CashRoundSchedule
	if err := tx.Where("cash_round_id = ?", roundID).First(&existing).Error; err == nil {
		return nil, fmt.Errorf("%w: round %d already has a schedule", models.ErrAlreadyExists, roundID)
	}

	var roundMembers []models.CashRoundMember
	if err := tx.Where("cash_round_id = ? AND is_active = ?", roundID, true).
		Order("position_in_rotation ASC").Find(&roundMembers).Error; err != nil {
		return nil, err
	}

	memberSet := make(map[uint]bool, len(roundMembers))
	for _, rm := range roundMembers {
		memberSet[rm.MemberID] = true
	}

	if len(rotationOrder) == 0 {
		for _, rm := range roundMembers {
			rotationOrder = append(rotationOrder, rm.MemberID)
		}
	} else {
		if len(rotationOrder) != len(roundMembers) {
			return nil, fmt.Errorf("%w: rotation order has %d members, round has %d", models.ErrInvalidAmount, len(rotationOrder), len(roundMembers))
		}
		seen := make(map[uint]bool, len(rotationOrder))
		for _, id := range rotationOrder {
			if !memberSet[id] {
				return nil, fmt.Errorf("%w: member %d is not in the round", models.ErrInvalidAmount, id)
			}
			if seen[id] {
				return nil, fmt.Errorf("%w: member %d listed twice in rotation order", models.ErrInvalidAmount, id)
			}
			seen[id] = true
		}
	}

	schedule := models.CashRoundSchedule{
		SaccoID:         round.SaccoID,
		CashRoundID:     round.ID,
		StartDate:       round.StartDate,
		RotationOrder:   rotationOrder,
		CurrentPosition: 0,
	}
	if err := tx.Create(&schedule).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

// StartRound activates a planned round and its schedule. Only one schedule
// per cooperative may be active at a time.
func StartRound(tx *gorm.DB, roundID uint) (*models.CashRound, error) {
	var round models.CashRound
	if err := tx.First(&round, roundID).Error; err != nil {
		return nil, fmt.Errorf("round %d not found: %w", roundID, err)
	}
	if round.Status != models.CashRoundPlanned {
		return nil, fmt.Errorf("%w: round is %s, only planned rounds can start", models.ErrInvalidTransition, round.Status)
	}

	var activeCount int64
	tx.Model(&models.CashRoundSchedule{}).
		Where("sacco_id = ? AND is_active = ?", round.SaccoID, true).
		Count(&activeCount)
	if activeCount > 0 {
		return nil, fmt.Errorf("%w: another schedule is already active", models.ErrAlreadyExists)
	}

	var schedule models.CashRoundSchedule
	if err := tx.Where("cash_round_id = ?", roundID).First(&schedule).Error; err != nil {
		return nil, fmt.Errorf("%w: round %d has no schedule", models.ErrNoActiveSchedule, roundID)
	}

	if err := tx.Model(&schedule).Update("is_active", true).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&round).Update("status", models.CashRoundActive).Error; err != nil {
		return nil, err
	}
	round.Status = models.CashRoundActive
	return &round, nil
}

// ActiveSchedule returns the cooperative's one active schedule, or
// ErrNoActiveSchedule.
func ActiveSchedule(tx *gorm.DB, saccoID uint) (*models.CashRoundSchedule, error) {
	var schedule models.CashRoundSchedule
	err := tx.Where("sacco_id = ? AND is_active = ?", saccoID, true).First(&schedule).Error
	if err == gorm.ErrRecordNotFound {
		return nil, models.ErrNoActiveSchedule
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// CurrentRecipient reports whose turn it is this week.
func CurrentRecipient(tx *gorm.DB, saccoID uint) (uint, *models.CashRoundSchedule, error) {
	schedule, err := ActiveSchedule(tx, saccoID)
	if err != nil {
		return 0, nil, err
	}
	if len(schedule.RotationOrder) == 0 {
		return 0, schedule, fmt.Errorf("%w: rotation is empty", models.ErrNoActiveSchedule)
	}
	return schedule.RotationOrder[int(schedule.CurrentPosition)%len(schedule.RotationOrder)], schedule, nil
}

// Advance moves the pointer one step, wrapping past the last member so N
// advances over N members return to the original recipient. Meeting
// completion calls it exactly once.
func Advance(tx *gorm.DB, schedule *models.CashRoundSchedule) error {
	if !schedule.IsActive {
		return fmt.Errorf("%w: schedule %d is not active", models.ErrNoActiveSchedule, schedule.ID)
	}
	if len(schedule.RotationOrder) == 0 {
		return fmt.Errorf("%w: rotation is empty", models.ErrNoActiveSchedule)
	}

	next := (schedule.CurrentPosition + 1) % uint(len(schedule.RotationOrder))
	if err := tx.Model(schedule).Update("current_position", next).Error; err != nil {
		return err
	}
	schedule.CurrentPosition = next
	return nil
}

// Retreat undoes one Advance when a completed meeting is reset, wrapping
// backwards from the first position to the last.
func Retreat(tx *gorm.DB, schedule *models.CashRoundSchedule) error {
	if !schedule.IsActive {
		return fmt.Errorf("%w: schedule %d is not active", models.ErrNoActiveSchedule, schedule.ID)
	}
	n := len(schedule.RotationOrder)
	if n == 0 {
		return fmt.Errorf("%w: rotation is empty", models.ErrNoActiveSchedule)
	}

	prev := (schedule.CurrentPosition + uint(n) - 1) % uint(n)
	if err := tx.Model(schedule).Update("current_position", prev).Error; err != nil {
		return err
	}
	schedule.CurrentPosition = prev
	return nil
}

// CompleteRound terminates an active round: the rotation pointer stops and
// the schedule deactivates. Wrapping is not completion; the treasurer ends
// the round explicitly once every member has received.
func CompleteRound(tx *gorm.DB, roundID uint) (*models.CashRound, error) {
	var round models.CashRound
	if err := tx.First(&round, roundID).Error; err != nil {
		return nil, fmt.Errorf("round %d not found: %w", roundID, err)
	}
	if round.Status != models.CashRoundActive {
		return nil, fmt.Errorf("%w: round is %s, only active rounds can complete", models.ErrInvalidTransition, round.Status)
	}

	now := time.Now()
	if err := tx.Model(&models.CashRoundSchedule{}).
		Where("cash_round_id = ?", roundID).
		Updates(map[string]interface{}{"is_active": false, "end_date": &now}).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&round).Update("status", models.CashRoundCompleted).Error; err != nil {
		return nil, err
	}
	round.Status = models.CashRoundCompleted
	return &round, nil
}

// RemoveMember drops a member from the rotation's future. A member whose
// turn has already passed keeps their payout; a future member is cut from
// the order and the round shortens by one week.
func RemoveMember(tx *gorm.DB, schedule *models.CashRoundSchedule, memberID uint) error {
	idx := -1
	for i, id := range schedule.RotationOrder {
		if id == memberID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("member %d is not in the rotation", memberID)
	}
	if idx < int(schedule.CurrentPosition) {
		return fmt.Errorf("%w: member %d has already received; cannot remove", models.ErrInvalidTransition, memberID)
	}
	if idx == int(schedule.CurrentPosition) {
		return fmt.Errorf("%w: member %d is the current recipient; advance past them first", models.ErrInvalidTransition, memberID)
	}

	// Save through the struct so the json serializer on RotationOrder runs.
	schedule.RotationOrder = append(append([]uint{}, schedule.RotationOrder[:idx]...), schedule.RotationOrder[idx+1:]...)
	if err := tx.Save(schedule).Error; err != nil {
		return err
	}

	now := time.Now()
	if err := tx.Model(&models.CashRoundMember{}).
		Where("cash_round_id = ? AND member_id = ?", schedule.CashRoundID, memberID).
		Updates(map[string]interface{}{"is_active": false, "left_at": &now}).Error; err != nil {
		return err
	}

	return resizeRound(tx, schedule.CashRoundID)
}

// resizeRound recounts a round's active members and refreshes num_weeks and
// the expected end date (start_date + num_weeks weeks).
func resizeRound(tx *gorm.DB, roundID uint) error {
	var round models.CashRound
	if err := tx.First(&round, roundID).Error; err != nil {
		return err
	}

	var active int64
	if err := tx.Model(&models.CashRoundMember{}).
		Where("cash_round_id = ? AND is_active = ?", roundID, true).
		Count(&active).Error; err != nil {
		return err
	}

	return tx.Model(&round).Updates(map[string]interface{}{
		"num_weeks":         uint(active),
		"expected_end_date": round.StartDate.AddDate(0, 0, 7*int(active)),
	}).Error
}

// AddMember appends a member to the end of the rotation mid-round.
func AddMember(tx *gorm.DB, schedule *models.CashRoundSchedule, memberID uint) error {
	var round models.CashRound
	if err := tx.First(&round, schedule.CashRoundID).Error; err != nil {
		return err
	}

	var member models.SaccoMember
	if err := tx.First(&member, "id = ? AND sacco_id = ?", memberID, round.SaccoID).Error; err != nil {
		return fmt.Errorf("member %d not found: %w", memberID, err)
	}
	if member.Status != models.MemberStatusActive {
		return fmt.Errorf("%w: member %d is not active", models.ErrInvalidAmount, memberID)
	}
	for _, id := range schedule.RotationOrder {
		if id == memberID {
			return fmt.Errorf("%w: member %d is already in the rotation", models.ErrAlreadyExists, memberID)
		}
	}

	schedule.RotationOrder = append(append([]uint{}, schedule.RotationOrder...), memberID)
	if err := tx.Save(schedule).Error; err != nil {
		return err
	}

	rm := models.CashRoundMember{
		CashRoundID:        schedule.CashRoundID,
		MemberID:           memberID,
		PositionInRotation: uint(len(schedule.RotationOrder)),
		IsActive:           true,
	}
	if err := tx.Create(&rm).Error; err != nil {
		return err
	}

	return resizeRound(tx, round.ID)
}
