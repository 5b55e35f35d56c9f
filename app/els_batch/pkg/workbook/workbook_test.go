package workbook

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "els.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{
		"번호", "발행회사", "신용등급", "상품명", "기초자산", "발행일", "만기일", "수익률", "최대손실률",
		"청약시작일", "청약종료일", "상품유형", "", "홈페이지", "", "비고",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{
		"1", "OO증권", "AA", "OO증권 제123회", "삼성전자<br/>SK하이닉스", "20240102", "20270102", 8.5, 100,
		"20231220", "20231227", "90-90-85-85-80-75 KI45", "", "http://home", "", "비고",
	}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{
		"3", "KB증권", "AA", "KB증권 제7회",
	}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := Read(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, model.Row{
		Index:             2,
		Issuer:            "OO증권",
		CreditRating:      "AA",
		Name:              "OO증권 제123회",
		Underlyings:       "삼성전자<br/>SK하이닉스",
		IssuedDate:        "20240102",
		MaturityDate:      "20270102",
		Yield:             "8.5",
		MaximumLossRate:   "100",
		SubscriptionStart: "20231220",
		SubscriptionEnd:   "20231227",
		FullTerms:         "90-90-85-85-80-75 KI45",
		Link:              "http://home",
		Remarks:           "비고",
	}, rows[0])

	assert.Equal(t, 4, rows[1].Index)
	assert.Equal(t, "KB증권 제7회", rows[1].Name)
	assert.Empty(t, rows[1].Remarks)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.xlsx"))
	assert.ErrorIs(t, err, model.ErrInputMissing)

	csv := filepath.Join(dir, "els.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b"), 0o644))
	_, err = Read(csv)
	assert.ErrorIs(t, err, model.ErrFormatUnsupported)
}
