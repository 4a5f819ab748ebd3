package services

import (
	"math"
	"math/rand"
	"sort"
)

// randomForest is an ensemble of CART classification trees grown on bootstrap
// samples with a random feature subset per split. Class probabilities are the
// mean of the leaf distributions.
type randomForest struct {
	trees    []*treeNode
	nClasses int
}

type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	dist      []float64 // leaf only
}

func (n *treeNode) leaf() bool { return n.dist != nil }

// fitForest grows nTrees trees. Each tree draws its own seed from a master
// source seeded with seed, so the forest is reproducible.
func fitForest(x [][]float64, y []int, nClasses, nTrees int, seed int64) *randomForest {
	master := rand.New(rand.NewSource(seed))
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	maxFeatures := int(math.Sqrt(float64(nFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	forest := &randomForest{nClasses: nClasses}
	if len(x) == 0 {
		return forest
	}
	for t := 0; t < nTrees; t++ {
		g := &treeGrower{
			x:           x,
			y:           y,
			nClasses:    nClasses,
			nFeatures:   nFeatures,
			maxFeatures: maxFeatures,
			rng:         rand.New(rand.NewSource(master.Int63())),
		}
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = g.rng.Intn(len(x))
		}
		forest.trees = append(forest.trees, g.grow(sample))
	}
	return forest
}

// predictProba averages the leaf distributions reached by row.
func (f *randomForest) predictProba(row []float64) []float64 {
	proba := make([]float64, f.nClasses)
	if len(f.trees) == 0 {
		return proba
	}
	for _, tree := range f.trees {
		node := tree
		for !node.leaf() {
			if row[node.feature] <= node.threshold {
				node = node.left
			} else {
				node = node.right
			}
		}
		for c, p := range node.dist {
			proba[c] += p
		}
	}
	for c := range proba {
		proba[c] /= float64(len(f.trees))
	}
	return proba
}

// predict returns the most probable class; ties go to the lowest index.
func (f *randomForest) predict(row []float64) int {
	proba := f.predictProba(row)
	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return best
}

type treeGrower struct {
	x           [][]float64
	y           []int
	nClasses    int
	nFeatures   int
	maxFeatures int
	rng         *rand.Rand
}

func (g *treeGrower) grow(sample []int) *treeNode {
	counts := g.classCounts(sample)
	if len(sample) < 2 || gini(counts, len(sample)) == 0 {
		return g.leafNode(counts, len(sample))
	}

	feature, threshold, ok := g.bestSplit(sample)
	if !ok {
		return g.leafNode(counts, len(sample))
	}

	var left, right []int
	for _, i := range sample {
		if g.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &treeNode{
		feature:   feature,
		threshold: threshold,
		left:      g.grow(left),
		right:     g.grow(right),
	}
}

// bestSplit draws features in random order and evaluates them until
// maxFeatures non-constant features were seen, keeping the lowest weighted Gini.
func (g *treeGrower) bestSplit(sample []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := math.Inf(1)
	visited := 0

	for _, feature := range g.rng.Perm(g.nFeatures) {
		if visited >= g.maxFeatures && bestFeature >= 0 {
			break
		}
		threshold, impurity, ok := g.splitOn(sample, feature)
		if !ok {
			continue // 定数特徴量
		}
		visited++
		if impurity < bestImpurity {
			bestFeature, bestThreshold, bestImpurity = feature, threshold, impurity
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// splitOn finds the midpoint threshold on feature minimising the weighted Gini
// impurity of the two children.
func (g *treeGrower) splitOn(sample []int, feature int) (float64, float64, bool) {
	sorted := make([]int, len(sample))
	copy(sorted, sample)
	sort.SliceStable(sorted, func(a, b int) bool { return g.x[sorted[a]][feature] < g.x[sorted[b]][feature] })

	n := len(sorted)
	right := g.classCounts(sorted)
	left := make([]int, g.nClasses)

	bestThreshold, bestImpurity, found := 0.0, math.Inf(1), false
	for i := 0; i < n-1; i++ {
		c := g.y[sorted[i]]
		left[c]++
		right[c]--

		v, next := g.x[sorted[i]][feature], g.x[sorted[i+1]][feature]
		if v == next {
			continue
		}
		nl, nr := i+1, n-i-1
		impurity := (float64(nl)*gini(left, nl) + float64(nr)*gini(right, nr)) / float64(n)
		if impurity < bestImpurity {
			bestThreshold, bestImpurity, found = v+(next-v)/2, impurity, true
		}
	}
	return bestThreshold, bestImpurity, found
}

func (g *treeGrower) classCounts(sample []int) []int {
	counts := make([]int, g.nClasses)
	for _, i := range sample {
		counts[g.y[i]]++
	}
	return counts
}

func (g *treeGrower) leafNode(counts []int, n int) *treeNode {
	dist := make([]float64, g.nClasses)
	if n > 0 {
		for c, k := range counts {
			dist[c] = float64(k) / float64(n)
		}
	}
	return &treeNode{dist: dist}
}

func gini(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	impurity := 1.0
	for _, k := range counts {
		p := float64(k) / float64(n)
		impurity -= p * p
	}
	return impurity
}
