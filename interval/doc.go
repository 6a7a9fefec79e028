/*Package interval merges the target-region files of several samples into
  one ordered set of closed intervals per chromosome, and reads and writes the
  merged set as a BED-like file.
  (Merging is done by single-pass insertion: each new interval is merged into
  the first existing interval it touches, and the result is not re-scanned
  against later intervals.  RegionSet.Collapse removes any overlaps left
  behind.)
  Chromosomes are numbered 1-22; positions fit in a PosType.
*/
package interval
