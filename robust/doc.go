// Package robust implements outlier-resistant emitter localisation on top
// of the solver package fit primitives.
//
// A robust estimator repeatedly samples minimal subsets of readings, fits
// a candidate solution per subset, scores every reading against each
// candidate, and keeps the winner according to the configured consensus
// method (RANSAC, MSAC, PROSAC, LMedS or PROMedS). The winning solution
// is optionally refined by re-fitting over the inlier readings only,
// producing a parameter covariance estimate.
//
// Estimators are single-threaded and blocking: Estimate runs sampling,
// fitting and refinement on the calling goroutine. A reentrancy guard
// rejects configuration changes while an estimation is in progress; use
// separate estimator instances for parallel estimation.
package robust
