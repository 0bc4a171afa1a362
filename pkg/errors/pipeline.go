package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Pipeline stage names. Every fatal error surfaced to the operator names one of these.
const (
	StageLoad       = "load"
	StagePreprocess = "preprocess"
	StageSplit      = "split"
	StageBalance    = "balance"
	StageFit        = "fit"
	StageEvaluate   = "evaluate"
	StagePersist    = "persist"
	StageScore      = "score"
	StageExplain    = "explain"
)

// DataFormatError は入力データが表形式として不正な場合のエラーです。
// 行の列数が揃っていない、目的変数に Yes/No 以外の値がある、数値列に非数値がある等。
type DataFormatError struct {
	Stage  string
	Row    int // 1-based data row, 0 if not row specific
	Column string
	Reason string
}

func (e *DataFormatError) Error() string {
	switch {
	case e.Row > 0 && e.Column != "":
		return fmt.Sprintf("attrition: %s: data format error at row %d, column %q: %s", e.Stage, e.Row, e.Column, e.Reason)
	case e.Row > 0:
		return fmt.Sprintf("attrition: %s: data format error at row %d: %s", e.Stage, e.Row, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("attrition: %s: data format error in column %q: %s", e.Stage, e.Column, e.Reason)
	}
	return fmt.Sprintf("attrition: %s: data format error: %s", e.Stage, e.Reason)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DataFormatError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Int("row", e.Row).
		Str("column", e.Column).
		Str("reason", e.Reason).
		Str("type", "DataFormatError")
}

// NewDataFormatError は新しいDataFormatErrorを作成し、スタックトレースを付与します。
func NewDataFormatError(stage string, row int, column, reason string) error {
	return errors.WithStack(&DataFormatError{Stage: stage, Row: row, Column: column, Reason: reason})
}

// SchemaMismatchError は推論時の特徴量が学習時のスキーマと一致しない場合のエラーです。
type SchemaMismatchError struct {
	Stage    string
	Column   string
	Expected interface{}
	Got      interface{}
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("attrition: %s: incompatible input: %s", e.Stage, e.Reason)
	if e.Column != "" {
		msg += fmt.Sprintf(" (column %q)", e.Column)
	}
	if e.Expected != nil || e.Got != nil {
		msg += fmt.Sprintf(": expected %v, got %v", e.Expected, e.Got)
	}
	return msg
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("column", e.Column).
		Interface("expected", e.Expected).
		Interface("got", e.Got).
		Str("reason", e.Reason).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError は新しいSchemaMismatchErrorを作成し、スタックトレースを付与します。
func NewSchemaMismatchError(stage, column, reason string, expected, got interface{}) error {
	return errors.WithStack(&SchemaMismatchError{
		Stage:    stage,
		Column:   column,
		Expected: expected,
		Got:      got,
		Reason:   reason,
	})
}

// DegenerateDataError は学習に十分なデータがない場合のエラーです（少数クラスが1件のみ等）。
type DegenerateDataError struct {
	Stage  string
	Reason string
}

func (e *DegenerateDataError) Error() string {
	return fmt.Sprintf("attrition: %s: degenerate data: %s", e.Stage, e.Reason)
}

// NewDegenerateDataError は新しいDegenerateDataErrorを作成し、スタックトレースを付与します。
func NewDegenerateDataError(stage, reason string) error {
	return errors.WithStack(&DegenerateDataError{Stage: stage, Reason: reason})
}

// ArtifactError はモデルファイルの読み書きに失敗した場合のエラーです。
type ArtifactError struct {
	Path string
	Op   string // "load" or "save"
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("attrition: model artifact %s %q: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("attrition: model artifact %s %q failed", e.Op, e.Path)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ArtifactError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("path", e.Path).
		Str("op", e.Op).
		AnErr("cause", e.Err).
		Str("type", "ArtifactError")
}

// NewArtifactError は新しいArtifactErrorを作成し、スタックトレースを付与します。
func NewArtifactError(op, path string, err error) error {
	return errors.WithStack(&ArtifactError{Path: path, Op: op, Err: err})
}

// StageError はパイプラインのどの段階で失敗したかを保持するラッパーです。
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// InStage は err を StageError で包みます。err が nil の場合は nil を返します。
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf はエラーチェーンから最も外側のステージ名を取り出します。見つからない場合は空文字列。
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	var df *DataFormatError
	if errors.As(err, &df) {
		return df.Stage
	}
	var sm *SchemaMismatchError
	if errors.As(err, &sm) {
		return sm.Stage
	}
	var dd *DegenerateDataError
	if errors.As(err, &dd) {
		return dd.Stage
	}
	return ""
}
