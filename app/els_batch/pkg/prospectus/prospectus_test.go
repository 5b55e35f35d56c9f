package prospectus

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

func mustDoc(t *testing.T, body string) *Document {
	t.Helper()
	d, err := NewDocument("http://x", strings.NewReader("<html><body>"+body+"</body></html>"))
	require.NoError(t, err)
	return d
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

const siblingHeader = `<table><tr><td>OO증권 주식회사</td><td>제123회<br>제124회</td></tr></table>`

func TestText(t *testing.T) {
	d := mustDoc(t, "<table><tr><td>만기평가일&nbsp;:<br>2024년   01월 02일</td></tr></table>")
	assert.Equal(t, "만기평가일 : 2024년 01월 02일", Text(d.dom.Find("td")))
}

func TestSessionTokens(t *testing.T) {
	assert.Equal(t, []string{"123"}, SessionTokens("OO증권 제123회"))
	assert.Equal(t, []string{"25123"}, SessionTokens("신한투자증권 제 25123회 ELS"))
	assert.Equal(t, []string{"12", "7"}, SessionTokens("12 호7"))
	assert.Empty(t, SessionTokens("KB 123ELS"))
	assert.Empty(t, SessionTokens(`<td width="100">`))

	assert.Equal(t, "3", ParseSession("미래에셋 2 제3회"))
	assert.Equal(t, "", ParseSession("OO증권ELS"))
}

func TestLocate(t *testing.T) {
	d := mustDoc(t, `<table><tr><td>OO증권 주식회사</td><td>제123회<br>제124회<br/>제125회</td></tr></table>`)

	sessions := d.Sessions().Sessions()
	require.Equal(t, []string{"123", "124", "125"}, sessions)
	for i, s := range sessions {
		assert.Equal(t, i+1, d.Locate(s))
	}
	assert.Equal(t, 0, d.Locate("999"))
	assert.Equal(t, 0, d.Locate(""))
}

func TestLocateRange(t *testing.T) {
	d := mustDoc(t, `<table><tr><td>삼성증권 주식회사</td><td>제29589-29598회</td></tr></table>`)

	assert.Empty(t, d.Sessions().Sessions())
	assert.Equal(t, 1, d.Locate("29589"))
	assert.Equal(t, 2, d.Locate("29590"))
	assert.Equal(t, 0, d.Locate("abc"))
}

func TestLocateWithoutMarker(t *testing.T) {
	d := mustDoc(t, `<table><tr><td>제123회</td></tr></table>`)
	assert.Equal(t, 0, d.Locate("123"))
}

func TestMaturityDefault(t *testing.T) {
	d := mustDoc(t, siblingHeader+
		`<p>만기평가일 : 2024년 01월 02일</p>`+
		`<p>만기평가일 : 2025년 06월 01일</p>`)
	e := NewExtractor(nil)

	assert.Equal(t, 1, d.Locate("123"))
	assert.Equal(t, date(2024, 1, 2), e.MaturityEvaluationDate("OO증권", "123", d))
	assert.Equal(t, model.MaturitySingle, e.MaturityEvaluationKind("OO증권", "123", d))
	assert.Equal(t, date(2025, 6, 1), e.MaturityEvaluationDate("OO증권", "124", d))

	assert.Nil(t, e.MaturityEvaluationDate("OO증권", "999", d))
	assert.Equal(t, model.MaturityUnknown, e.MaturityEvaluationKind("OO증권", "999", d))
	assert.Nil(t, e.MaturityEvaluationDate("OO증권", "", d))
}

func TestMaturityDefaultAdjacentTable(t *testing.T) {
	d := mustDoc(t, siblingHeader+
		`<p>만기상환평가일 : 2024년 01월 02일</p>`+
		`<table><tr><td>2024년 01월 03일</td><td>2024년 01월 04일</td></tr></table>`+
		`<table><tr><td>만기상환평가일 : 아래 참조</td><td>2025년 06월 01일</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, date(2024, 1, 2), e.MaturityEvaluationDate("OO증권", "123", d))
	assert.Equal(t, model.MaturityMultiple, e.MaturityEvaluationKind("OO증권", "123", d))
	assert.Equal(t, date(2025, 6, 1), e.MaturityEvaluationDate("OO증권", "124", d))
	assert.Equal(t, model.MaturitySingle, e.MaturityEvaluationKind("OO증권", "124", d))
}

func TestMaturitySamsung(t *testing.T) {
	d := mustDoc(t, `<table><tr><td>삼성증권 주식회사</td><td>제100회<br>제101회<br>제102회</td></tr></table>`+
		`<table>`+
		`<tr><td>만기평가일 (예정)</td><td>2025년 01월 02일</td></tr>`+
		`<tr><td>만기평가일 (예정)</td><td>2026년 03월 04일, 2026년 03월 05일</td></tr>`+
		`<tr><td>만기평가일 (예정)</td><td>미정</td></tr>`+
		`</table>`)
	e := NewExtractor(nil)

	assert.Equal(t, date(2025, 1, 2), e.MaturityEvaluationDate("삼성증권", "100", d))
	assert.Equal(t, model.MaturitySingle, e.MaturityEvaluationKind("삼성증권", "100", d))
	assert.Equal(t, date(2026, 3, 4), e.MaturityEvaluationDate("삼성증권", "101", d))
	assert.Equal(t, model.MaturityMultiple, e.MaturityEvaluationKind("삼성증권", "101", d))
	assert.Nil(t, e.MaturityEvaluationDate("삼성증권", "102", d))
	assert.Equal(t, model.MaturityUnknown, e.MaturityEvaluationKind("삼성증권", "102", d))
}

func TestMaturityKyoboAndKiwoom(t *testing.T) {
	kyobo := mustDoc(t, `<table><tr><td>교보증권 주식회사</td><td>제1회<br>제2회</td></tr></table>`+
		`<table><tr><td>만기평가일</td><td>2025년 01월 02일</td></tr></table>`+
		`<table><tr><td>만기평가일</td><td>2026년 01월 02일 2026년 01월 05일</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, date(2026, 1, 2), e.MaturityEvaluationDate("교보증권", "2", kyobo))
	assert.Equal(t, model.MaturityMultiple, e.MaturityEvaluationKind("교보증권", "2", kyobo))
	// 默认方式找不到这种写法
	assert.Nil(t, e.MaturityEvaluationDate("OO증권", "2", kyobo))

	kiwoom := mustDoc(t, `<table><tr><td>키움증권 주식회사</td><td>제7회</td></tr></table>`+
		`<p>만기평가일 : 2025년 01월 02일, 2025년 01월 03일</p>`)
	assert.Equal(t, date(2025, 1, 2), e.MaturityEvaluationDate("키움증권", "7", kiwoom))
	assert.Equal(t, model.MaturityMultiple, e.MaturityEvaluationKind("키움증권", "7", kiwoom))
}

func TestInitialFixingDate(t *testing.T) {
	d := mustDoc(t, siblingHeader+
		`<p>최초기준가격평가일 : 2023년 12월 01일</p>`+
		`<table><tr><td>최초기준가격평가일</td><td>2023년 12월 08일</td><td>2023년 12월 09일</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, date(2023, 12, 1), e.InitialFixingDate("OO증권", "123", d))
	assert.Equal(t, date(2023, 12, 8), e.InitialFixingDate("OO증권", "124", d))

	samsung := mustDoc(t, `<table><tr><td>삼성증권 주식회사</td><td>제100회</td></tr></table>`+
		`<table><tr><td>최초기준가격 결정일 (예정)</td><td>2023년 11월 30일</td></tr></table>`)
	assert.Equal(t, date(2023, 11, 30), e.InitialFixingDate("삼성증권", "100", samsung))
	assert.Nil(t, e.InitialFixingDate("OO증권", "100", samsung))
}

func TestInitialFixingSharedTable(t *testing.T) {
	d := mustDoc(t, siblingHeader+
		`<table><tr><td>최초기준가격평가일</td><td>2023년 12월 08일</td><td>2023년 12월 09일</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, date(2023, 12, 8), e.InitialFixingDate("OO증권", "123", d))
	assert.Equal(t, date(2023, 12, 9), e.InitialFixingDate("OO증권", "124", d))

	// 삼성증권 每个表格只取一个日期
	samsung := mustDoc(t, `<table><tr><td>삼성증권 주식회사</td><td>제100회<br>제101회</td></tr></table>`+
		`<table><tr><td>최초기준가격 결정일 (예정)</td><td>2023년 11월 30일</td><td>2023년 12월 01일</td></tr></table>`)
	assert.Equal(t, date(2023, 11, 30), e.InitialFixingDate("삼성증권", "100", samsung))
	assert.Nil(t, e.InitialFixingDate("삼성증권", "101", samsung))
}

func TestVolatility(t *testing.T) {
	assert.Equal(t, "삼성전자 : 25.3% / SK하이닉스 : 20.1%",
		FormatVolatility("- 삼성전자 : 변동성 25.3% / [SK하이닉스(1)] : 20.1%"))
	assert.Equal(t, "삼성전자 : 30%", FormatVolatility("삼성전자 보통주 : 변동성지수 30%"))

	d := mustDoc(t, siblingHeader+
		`<table><tr><th>항 목</th><th>내 용</th></tr>`+
		`<tr><td>기초자산가격 변동성</td><td>- 삼성전자 : 변동성 25.3% / [SK하이닉스(1)] : 20.1%</td></tr></table>`+
		`<table><tr><th>항목</th><th>내용</th></tr>`+
		`<tr><td>기초자산가격 변동성</td><td>- KOSPI200 : 18.5%</td></tr></table>`+
		`<table><tr><th>구분</th></tr><tr><td>기초자산가격 변동성</td><td>- X : 1%</td></tr></table>`)
	e := NewExtractor(nil)

	v := e.Volatility("123", d)
	require.NotNil(t, v)
	assert.Equal(t, "삼성전자 : 25.3% / SK하이닉스 : 20.1%", *v)

	v = e.Volatility("124", d)
	require.NotNil(t, v)
	assert.Equal(t, "KOSPI200 : 18.5%", *v)

	assert.Equal(t, []model.VolatilityEntry{
		{Underlying: "삼성전자", Percent: 25.3},
		{Underlying: "SK하이닉스", Percent: 20.1},
	}, ParseVolatility("[삼성전자] : 25.3% / SK하이닉스 : 20.1%"))
}

func TestEarlyRedemptionTable(t *testing.T) {
	d := mustDoc(t, siblingHeader+
		`<table><tr><th>차수</th><th>자동조기상환평가일</th></tr>`+
		`<tr><td>1-1차</td><td>2024년 06월 01일</td></tr>`+
		`<tr><td>2-1차</td><td>2024년 12월 02일</td></tr>`+
		`<tr><td>비고</td><td>영업일 기준</td></tr></table>`+
		`<table><tr><th>차 수</th><th>자동조기상환평가일</th></tr>`+
		`<tr><td>1차</td><td>2025년 06월 01일</td></tr></table>`+
		`<table><tr><td>중간기준가격 결정일</td><td>1차: 2030년 01월 01일</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, []string{"1차: 2024년 06월 01일", "2차: 2024년 12월 02일"}, e.EarlyRedemptionDates("123", d))
	assert.Equal(t, []string{"1차: 2025년 06월 01일"}, e.EarlyRedemptionDates("124", d))

	r, ok := ParseRedemption("2차: 2024년 12월 02일")
	require.True(t, ok)
	assert.Equal(t, "2차", r.Round)
	assert.Equal(t, *date(2024, 12, 2), r.Date)

	_, ok = ParseRedemption("2차 2024")
	assert.False(t, ok)
}

func TestUnpaddedDates(t *testing.T) {
	r, ok := ParseRedemption("1차: 2024년 6월 1일")
	require.True(t, ok)
	assert.Equal(t, "1차", r.Round)
	assert.Equal(t, *date(2024, 6, 1), r.Date)

	d := mustDoc(t, siblingHeader+
		`<p>만기평가일 : 2024년 1월 2일</p>`+
		`<table><tr><td>중간기준가격 결정일</td><td>1차: 2024년 6월 1일, 2차: 2024년 12월 2일</td></tr></table>`)
	e := NewExtractor(nil)
	assert.Equal(t, date(2024, 1, 2), e.MaturityEvaluationDate("OO증권", "123", d))
	assert.Equal(t, []string{"1차: 2024년 6월 1일", "2차: 2024년 12월 2일"}, e.EarlyRedemptionDates("123", d))
}

func TestDocumentTitle(t *testing.T) {
	page := `<html><head><title>투자설명서 정정신고</title></head><body><article>` +
		strings.Repeat(`<p>본 증권은 원금손실이 발생할 수 있는 파생결합증권으로서 투자자는 투자설명서를 반드시 읽어보시기 바랍니다.</p>`, 5) +
		`</article></body></html>`
	d, err := NewDocument("http://dart.example/report", strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "투자설명서 정정신고", d.Title())

	bad, err := NewDocument("://bad", strings.NewReader(page))
	require.NoError(t, err)
	assert.Empty(t, bad.Title())
}

func TestEarlyRedemptionFallback(t *testing.T) {
	var monthly []string
	for i := 1; i <= 12; i++ {
		monthly = append(monthly, strconv.Itoa(i)+"차: 2024년 01월 02일")
	}
	d := mustDoc(t, siblingHeader+
		`<table><tr><td>중간기준가격 결정일</td><td>1차: 2024년 06월 01일, 2차: 2024년 12월 02일</td></tr></table>`+
		`<table><tr><td>월수익 중간기준가격 결정일</td><td>`+strings.Join(monthly, ", ")+`</td></tr></table>`)
	e := NewExtractor(nil)

	assert.Equal(t, []string{"1차: 2024년 06월 01일", "2차: 2024년 12월 02일"}, e.EarlyRedemptionDates("123", d))
	assert.Equal(t, []string{"1차: 2024년 01월 02일", "2차: 2024년 01월 02일"}, e.EarlyRedemptionDates("124", d))
}

func TestExtractWithoutSession(t *testing.T) {
	d := mustDoc(t, siblingHeader+`<p>만기평가일 : 2024년 01월 02일</p>`)
	f := NewExtractor(nil).Extract("OO증권", "", d)

	assert.Nil(t, f.MaturityEvaluationDate)
	assert.Nil(t, f.InitialFixingDate)
	assert.Nil(t, f.Volatility)
	assert.Nil(t, f.EarlyRedemption)
	assert.Equal(t, model.MaturityUnknown, f.MaturityEvaluationKind)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	called := false
	r.Register("테스트증권", Strategy{Maturity: func(*Document) [][]string {
		called = true
		return [][]string{{"2024년 01월 02일"}}
	}})

	s := r.For("테스트증권")
	require.NotNil(t, s.InitialFixing)
	s.Maturity(nil)
	assert.True(t, called)
	assert.NotNil(t, r.For("없는증권").Maturity)
}

func TestIsCorrection(t *testing.T) {
	assert.True(t, IsCorrection(mustDoc(t, `<p>투자설명서 정정사항 안내</p>`)))
	assert.True(t, IsCorrection(mustDoc(t, `<p>정&nbsp;정 신 고</p>`)))
	assert.False(t, IsCorrection(mustDoc(t, `<div>정정사항</div><p>본문</p>`)))
}

func TestParagraphs(t *testing.T) {
	d := mustDoc(t, `<p> a <b>b</b></p><p>c</p>`)
	assert.Equal(t, []string{"a b", "c"}, d.Paragraphs())
}
