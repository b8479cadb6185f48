package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// factorScore computes the raw 0-100 sub-score of one category from
// its criterion scores and the detailed criterion weights.
func factorScore(p *domain.ApplicantProfile, cat domain.ScoreCategory, detailed map[string]float64) float64 {
	var score float64
	switch cat {
	case domain.CategoryPaymentBehavior:
		bureau := 100.0
		if p.Restrictions {
			bureau = 0
		}
		score += bureau * detailed[CritBureauRestrictions]
		score += float64(p.PaymentHistory) * detailed[CritPunctuality12m]
		score += max0(100-float64(p.HistoricalDefaultRate)) * detailed[CritHistoricalDefault]
		score += float64(p.DebtRegularizationSpeed) * detailed[CritDebtRegularization]
		score += max0(100-float64(p.Protests)*20) * detailed[CritNotaryProtests]

	case domain.CategoryCurrentDebt:
		commitment := p.DebtToIncome()
		score += max0(100-commitment) * detailed[CritIncomeCommitment]
		score += max0(100-float64(p.CreditUtilization)) * detailed[CritCardUtilization]

		contracts := p.OpenAccounts
		var contractsScore float64
		switch {
		case contracts >= 2 && contracts <= 5:
			contractsScore = 100
		case contracts < 2:
			contractsScore = float64(contracts) * 40
		default:
			contractsScore = max0(100 - float64(contracts-5)*15)
		}
		score += contractsScore * detailed[CritActiveContracts]

		var debtScore float64
		if p.MonthlyIncome > 0 {
			ratio := p.TotalDebt / (p.MonthlyIncome * 12) * 100
			if ratio > 100 {
				ratio = 100
			}
			debtScore = max0(100 - ratio)
		}
		score += debtScore * detailed[CritTotalDebtValue]
		score += max0(100-float64(p.BankDebtConcentration)) * detailed[CritBankSectorDebt]

	case domain.CategoryBankingRelationship:
		tenure := float64(p.AccountAgeMonths) / 120 * 100
		if tenure > 100 {
			tenure = 100
		}
		score += tenure * detailed[CritAccountTenure]

		var turnover float64
		if p.MonthlyIncome > 0 {
			turnover = p.MonthlyTurnover / p.MonthlyIncome * 100 / 3
			if turnover > 100 {
				turnover = 100
			}
		}
		score += turnover * detailed[CritFinancialTurnover]

		products := float64(p.BankProductsCount) * 25
		if products > 100 {
			products = 100
		}
		score += products * detailed[CritProductsHeld]

		banks := p.BanksRelationshipCount
		var multiBank float64
		switch {
		case banks >= 2 && banks <= 4:
			multiBank = 100
		case banks == 1:
			multiBank = 60
		default:
			multiBank = max0(100 - float64(banks-4)*20)
		}
		score += multiBank * detailed[CritMultiBank]

		salary := 40.0
		if p.HasSalaryAccount {
			salary = 100
		}
		score += salary * detailed[CritSalaryAccount]

	case domain.CategoryDemographics:
		var income float64
		switch {
		case p.MonthlyIncome >= 10000:
			income = 100
		case p.MonthlyIncome >= 5000:
			income = 80
		case p.MonthlyIncome >= 3000:
			income = 60
		case p.MonthlyIncome >= 1500:
			income = 40
		default:
			income = 20
		}
		score += income * detailed[CritDeclaredIncome]

		var stability float64
		switch {
		case p.EmploymentStabilityMonths >= 36:
			stability = 100
		case p.EmploymentStabilityMonths >= 24:
			stability = 80
		case p.EmploymentStabilityMonths >= 12:
			stability = 60
		default:
			stability = float64(p.EmploymentStabilityMonths) * 5
		}
		score += stability * detailed[CritEmploymentStability]

		var ageBand float64
		switch {
		case p.Age >= 25 && p.Age <= 55:
			ageBand = 100
		case p.Age >= 18 && p.Age <= 65:
			ageBand = 80
		default:
			ageBand = 40
		}
		score += ageBand * detailed[CritAgeBand]

		education := float64(p.EducationLevel) * 20
		if education > 100 {
			education = 100
		}
		score += education * detailed[CritEducation]

		marital := 70.0
		if p.MaritalStatus == 1 {
			marital = 100
		}
		score += marital * detailed[CritMaritalStatus]

	case domain.CategoryRecentInquiries:
		score += max0(100-float64(p.Inquiries30d)*25) * detailed[CritInquiries30d]
		score += max0(100-float64(p.Inquiries90d)*10) * detailed[CritInquiries90d]

		self := p.SelfInquiries
		var selfScore float64
		switch {
		case self >= 1 && self <= 4:
			selfScore = 100
		case self == 0:
			selfScore = 60
		default:
			selfScore = max0(100 - float64(self-4)*20)
		}
		score += selfScore * detailed[CritSelfInquiries]

	case domain.CategoryRegistrationData:
		var freshness float64
		switch {
		case p.DaysSinceUpdate <= 30:
			freshness = 100
		case p.DaysSinceUpdate <= 90:
			freshness = 80
		case p.DaysSinceUpdate <= 180:
			freshness = 60
		default:
			freshness = 30
		}
		score += freshness * detailed[CritRegistryFreshness]
		score += float64(p.DataConsistencyScore) * detailed[CritDataConsistency]

		phones := float64(p.ValidatedPhones) * 50
		if phones > 100 {
			phones = 100
		}
		score += phones * detailed[CritValidatedPhones]

		address := 40.0
		if p.AddressConfirmed {
			address = 100
		}
		score += address * detailed[CritAddressConfirmed]
	}

	if score > 100 {
		score = 100
	}
	return max0(score)
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
