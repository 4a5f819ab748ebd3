package services

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"order-forecast-api/pkg/models"
)

// UnknownCustomerCode encodes a customer that was not seen during training.
const UnknownCustomerCode = -1

// ClassifierConfig tunes the order status classifier.
type ClassifierConfig struct {
	Trees     int
	Seed      int64
	TestRatio float64
}

// DefaultClassifierConfig returns 50 trees, seed 42 and an 80/20 split.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{Trees: 50, Seed: 42, TestRatio: 0.2}
}

// CustomerEncoder maps customer references to integer codes, assigned from 0
// in sorted order of the distinct references it was built from.
type CustomerEncoder struct {
	codes map[string]int
}

// NewCustomerEncoder builds an encoder over refs. Empty references are ignored.
func NewCustomerEncoder(refs []string) *CustomerEncoder {
	set := make(map[string]struct{})
	for _, ref := range refs {
		if ref != "" {
			set[ref] = struct{}{}
		}
	}
	enc := &CustomerEncoder{codes: make(map[string]int, len(set))}
	for i, ref := range sortedKeys(set) {
		enc.codes[ref] = i
	}
	return enc
}

// Encode returns the code of ref, or UnknownCustomerCode.
func (e *CustomerEncoder) Encode(ref string) int {
	if code, ok := e.codes[ref]; ok {
		return code
	}
	return UnknownCustomerCode
}

// Len is the number of known customers.
func (e *CustomerEncoder) Len() int { return len(e.codes) }

// LineIndex answers quantity lookups for order lines.
type LineIndex struct {
	byLine  map[string]int
	byOrder map[string]int
}

// NewLineIndex indexes lines by their own id and by the order they belong to.
func NewLineIndex(lines []models.OrderLineRecord) *LineIndex {
	idx := &LineIndex{
		byLine:  make(map[string]int, len(lines)),
		byOrder: make(map[string]int),
	}
	for _, line := range lines {
		idx.byLine[line.ID] = line.Quantity
		if line.OrderRef != "" {
			idx.byOrder[line.OrderRef] += line.Quantity
		}
	}
	return idx
}

// TotalQuantity sums the quantities of the order's lines. Line references
// missing from the index contribute 0 and are reported. Orders without line
// references fall back to the lines that point back at them.
func (idx *LineIndex) TotalQuantity(order models.OrderRecord) (int, []models.Warning) {
	if len(order.LineRefs) == 0 {
		return idx.byOrder[order.ID], nil
	}
	total := 0
	var warnings []models.Warning
	for _, ref := range order.LineRefs {
		q, ok := idx.byLine[ref]
		if !ok {
			err := &models.UnresolvableReferenceError{Table: "order lines", RecordID: order.ID, Ref: ref}
			warnings = append(warnings, err.Warning("lines"))
			continue
		}
		total += q
	}
	return total, warnings
}

// DayOfWeek numbers weekdays from Monday = 0. A missing date gives 0.
func DayOfWeek(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	return (int(t.Weekday()) + 6) % 7
}

// DeriveFeatures builds the classifier input for one order.
func DeriveFeatures(order models.OrderRecord, customers *CustomerEncoder, lines *LineIndex) (models.FeatureVector, []models.Warning) {
	qty, warnings := lines.TotalQuantity(order)
	return models.FeatureVector{
		CustomerCode:  customers.Encode(order.CustomerRef),
		DayOfWeek:     DayOfWeek(order.PlacedOn),
		TotalQuantity: qty,
	}, warnings
}

// OrderClassifier predicts a terminal status for orders awaiting classification.
type OrderClassifier struct {
	customers *CustomerEncoder
	lines     *LineIndex
	classes   []models.OrderStatus
	forest    *randomForest
	report    models.ClassificationReport
}

// TrainOrderClassifier fits a classifier on the orders that already carry a
// terminal status and scores it on a held-out split. Orders with any other
// status are ignored here.
func TrainOrderClassifier(orders []models.OrderRecord, lines []models.OrderLineRecord, cfg ClassifierConfig) (*OrderClassifier, []models.Warning, error) {
	if cfg.Trees <= 0 {
		return nil, nil, fmt.Errorf("classifier: trees must be positive, got %d", cfg.Trees)
	}

	var labeled []models.OrderRecord
	for _, o := range orders {
		if o.Status.IsTerminal() {
			labeled = append(labeled, o)
		}
	}
	if len(labeled) == 0 {
		return nil, nil, &models.InsufficientDataError{What: "orders with status Valid, Invalid or Duplicate"}
	}
	sort.Slice(labeled, func(i, j int) bool { return labeled[i].ID < labeled[j].ID })

	refs := make([]string, len(labeled))
	for i, o := range labeled {
		refs[i] = o.CustomerRef
	}
	c := &OrderClassifier{
		customers: NewCustomerEncoder(refs),
		lines:     NewLineIndex(lines),
	}

	// ラベル集合（ソート済み）
	present := make(map[models.OrderStatus]bool)
	for _, o := range labeled {
		present[o.Status] = true
	}
	classIndex := make(map[models.OrderStatus]int)
	for _, s := range models.TerminalStatuses {
		if present[s] {
			classIndex[s] = len(c.classes)
			c.classes = append(c.classes, s)
		}
	}

	var warnings []models.Warning
	x := make([][]float64, len(labeled))
	y := make([]int, len(labeled))
	for i, o := range labeled {
		fv, w := DeriveFeatures(o, c.customers, c.lines)
		warnings = append(warnings, w...)
		x[i] = fv.Values()
		y[i] = classIndex[o.Status]
	}

	train, test := splitIndices(len(labeled), cfg.TestRatio, cfg.Seed)
	trainX, trainY := pick(x, y, train)
	c.forest = fitForest(trainX, trainY, len(c.classes), cfg.Trees, cfg.Seed)

	testX, testY := pick(x, y, test)
	predicted := make([]int, len(testX))
	for i, row := range testX {
		predicted[i] = c.forest.predict(row)
	}
	c.report = buildReport(c.classes, testY, predicted)
	c.report.TrainSize = len(train)
	c.report.TestSize = len(test)
	return c, warnings, nil
}

// Predict classifies one order. The result is always a terminal status.
func (c *OrderClassifier) Predict(order models.OrderRecord) (models.OrderStatus, models.FeatureVector, []models.Warning) {
	fv, warnings := DeriveFeatures(order, c.customers, c.lines)
	return c.classes[c.forest.predict(fv.Values())], fv, warnings
}

// Report returns the held-out evaluation computed at training time.
func (c *OrderClassifier) Report() models.ClassificationReport { return c.report }

// Classes lists the labels the classifier can emit.
func (c *OrderClassifier) Classes() []models.OrderStatus {
	out := make([]models.OrderStatus, len(c.classes))
	copy(out, c.classes)
	return out
}

// splitIndices shuffles 0..n-1 with seed and holds out ceil(n*ratio) of them.
// When that would leave nothing to train on, nothing is held out.
func splitIndices(n int, ratio float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(float64(n) * ratio))
	if nTest >= n || nTest < 0 {
		nTest = 0
	}
	return perm[nTest:], perm[:nTest]
}

func pick(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	px := make([][]float64, len(idx))
	py := make([]int, len(idx))
	for i, j := range idx {
		px[i], py[i] = x[j], y[j]
	}
	return px, py
}

// buildReport computes per-class precision, recall, F1 and support over the
// labels present in either truth or prediction, plus accuracy and macro and
// support-weighted averages. Undefined ratios are 0.
func buildReport(classes []models.OrderStatus, truth, predicted []int) models.ClassificationReport {
	report := models.ClassificationReport{Classes: make(map[models.OrderStatus]models.ClassMetrics)}
	if len(truth) == 0 {
		return report
	}

	seen := make(map[int]bool)
	for i := range truth {
		seen[truth[i]] = true
		seen[predicted[i]] = true
	}

	correct := 0
	for i := range truth {
		if truth[i] == predicted[i] {
			correct++
		}
	}
	report.Accuracy = float64(correct) / float64(len(truth))

	var macro, weighted models.ClassMetrics
	for c, status := range classes {
		if !seen[c] {
			continue
		}
		var tp, predCount, support int
		for i := range truth {
			if predicted[i] == c {
				predCount++
				if truth[i] == c {
					tp++
				}
			}
			if truth[i] == c {
				support++
			}
		}
		m := models.ClassMetrics{
			Precision: ratio(tp, predCount),
			Recall:    ratio(tp, support),
			Support:   support,
		}
		if m.Precision+m.Recall > 0 {
			m.F1Score = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[status] = m

		macro.Precision += m.Precision
		macro.Recall += m.Recall
		macro.F1Score += m.F1Score
		w := float64(support)
		weighted.Precision += w * m.Precision
		weighted.Recall += w * m.Recall
		weighted.F1Score += w * m.F1Score
	}

	k := float64(len(report.Classes))
	total := float64(len(truth))
	report.MacroAvg = models.ClassMetrics{
		Precision: macro.Precision / k,
		Recall:    macro.Recall / k,
		F1Score:   macro.F1Score / k,
		Support:   len(truth),
	}
	report.WeightedAvg = models.ClassMetrics{
		Precision: weighted.Precision / total,
		Recall:    weighted.Recall / total,
		F1Score:   weighted.F1Score / total,
		Support:   len(truth),
	}
	return report
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
