package service

import (
	"errors"
	"fmt"
)

// 账本错误类型，调用方使用 errors.Is 判断
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("conflict")
	ErrStorage      = errors.New("storage failure")
)

var (
	ErrPartnerNotFound = fmt.Errorf("partner %w", ErrNotFound)
	ErrClientNotFound  = fmt.Errorf("client %w", ErrNotFound)
	ErrEarningNotFound = fmt.Errorf("earning %w", ErrNotFound)
)

// InvalidStateError 非法状态流转，携带当前状态与目标操作
type InvalidStateError struct {
	Entity    string
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: cannot %s %s in status %s", ErrInvalidState.Error(), e.Attempted, e.Entity, e.Current)
}

// Is 支持 errors.Is(err, ErrInvalidState)
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// StorageError 持久化层错误，对外只暴露通用信息
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", ErrStorage.Error(), e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", ErrStorage.Error(), e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is(err, ErrStorage)
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// wrapStorage 将仓储错误包装为 StorageError，已分类的业务错误原样返回
func wrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	if isLedgerError(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isLedgerError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStorage)
}
